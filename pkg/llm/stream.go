package llm

import "context"

// Finish reasons reported on the terminal chunk of a stream.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
	FinishLength    = "length"
)

// StreamChunk represents a single chunk in a streaming response.
// This is the internal representation used by the orchestrator after the
// provider client parses provider-specific streaming formats.
type StreamChunk struct {
	// Model that generated the chunk
	Model string `json:"model"`

	// TextDelta is the incremental text content carried by this chunk.
	TextDelta string `json:"text_delta,omitempty"`

	// ToolCallDeltas are partial tool invocations carried by this chunk.
	// A single logical tool call arrives spread across many chunks, keyed
	// by slot Index; argument fragments must be concatenated in arrival
	// order, never overwritten.
	ToolCallDeltas []ToolCallDelta `json:"tool_call_deltas,omitempty"`

	// Done marks the final chunk of the stream.
	Done bool `json:"done,omitempty"`

	// FinishReason is set on the final chunk ("stop", "tool_calls", "length").
	FinishReason string `json:"finish_reason,omitempty"`
}

// ToolCallDelta is one fragment of a streamed tool invocation.
type ToolCallDelta struct {
	// Index is the stream-assigned slot this fragment belongs to.
	Index int `json:"index"`

	// ID is the opaque tool-call id. Providers send it only on the first
	// fragment of a slot.
	ID string `json:"id,omitempty"`

	// Name is the function name. Providers send it only on the first
	// fragment of a slot.
	Name string `json:"name,omitempty"`

	// ArgsFragment is a partial JSON argument string to append to the
	// slot's accumulated arguments.
	ArgsFragment string `json:"args_fragment,omitempty"`
}

// Streamer opens a streamed chat completion. Implementations wrap a concrete
// provider API; the orchestrator only ever sees this interface so tests can
// script chunk sequences.
type Streamer interface {
	StreamChat(ctx context.Context, req *ChatRequest) (Stream, error)
}

// Stream yields parsed chunks from an in-flight completion.
// Next returns (nil, nil) when the stream is exhausted.
type Stream interface {
	Next(ctx context.Context) (*StreamChunk, error)
	Close() error
}

// ErrorResponse is the generic JSON error body returned by HTTP handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}
