// Package orchestrator drives one conversational turn: it consumes a chunked
// model response, accumulates tool-call fragments, executes locally
// resolvable invocations, and decides whether to auto-continue with a new
// inference call or suspend for a host-supplied tool result.
//
// The state machine per turn:
//
//	STREAMING ──(stop: tool_calls, local only)──▶ EXECUTING_LOCAL ──▶ STREAMING
//	STREAMING ──(stop: tool_calls, host needed)──▶ SUSPENDED_FOR_HOST
//	STREAMING ──(stop reason: stop)──▶ DONE
//
// The orchestrator is stateless between the suspend and resume phases:
// resuming is the caller's responsibility, by re-invoking RunTurn with a
// transcript extended by the assistant tool-call message and one tool-result
// message per pending tool-call id.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
)

const defaultMaxRounds = 4

// Config holds the orchestrator configuration.
type Config struct {
	// Model is the model name sent upstream.
	Model string

	// System is the system prompt prepended to every inference call.
	System string

	// MaxRounds caps auto-continuation inference calls per turn, guarding
	// against tool-call loops. Defaults to 4.
	MaxRounds int

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Orchestrator runs turns against an llm.Streamer.
type Orchestrator struct {
	streamer  llm.Streamer
	model     string
	system    string
	maxRounds int
	logger    *zap.Logger
}

// New creates an Orchestrator.
func New(streamer llm.Streamer, config Config) *Orchestrator {
	maxRounds := config.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		streamer:  streamer,
		model:     config.Model,
		system:    config.System,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// RunTurn processes one logical turn and returns its event stream. The
// channel is closed after exactly one terminal event. Cancelling the context
// stops stream consumption; nothing is committed for an aborted turn.
//
// The transcript is never mutated; continuation rounds derive new slices.
func (o *Orchestrator) RunTurn(ctx context.Context, transcript []llm.Message) <-chan TurnEvent {
	events := make(chan TurnEvent, 16)

	go func() {
		defer close(events)
		o.runTurn(ctx, transcript, events)
	}()

	return events
}

// emit sends an event unless the context is gone. Returns false when the
// caller stopped listening.
func emit(ctx context.Context, events chan<- TurnEvent, ev TurnEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, transcript []llm.Message, events chan<- TurnEvent) {
	if err := validateResumeTranscript(transcript); err != nil {
		emit(ctx, events, TurnEvent{Kind: EventFailed, Text: err.Error()})
		return
	}

	for round := 0; round < o.maxRounds; round++ {
		outcome := o.runRound(ctx, transcript, events)
		if outcome.terminalSent {
			return
		}
		transcript = outcome.transcript
	}

	emit(ctx, events, TurnEvent{
		Kind: EventFailed,
		Text: fmt.Sprintf("tool continuation limit reached after %d rounds", o.maxRounds),
	})
}

// roundOutcome is the result of one STREAMING→stop cycle.
type roundOutcome struct {
	// terminalSent is true when the round emitted a terminal event.
	terminalSent bool

	// transcript is the derived transcript for the next round.
	transcript []llm.Message
}

func (o *Orchestrator) runRound(ctx context.Context, transcript []llm.Message, events chan<- TurnEvent) roundOutcome {
	req := &llm.ChatRequest{
		Model:    o.model,
		System:   o.system,
		Tools:    toolDefinitions(),
		Messages: transcript,
	}

	stream, err := o.streamer.StreamChat(ctx, req)
	if err != nil {
		emit(ctx, events, TurnEvent{Kind: EventFailed, Text: "inference call failed: " + err.Error()})
		return roundOutcome{terminalSent: true}
	}
	defer stream.Close()

	var text strings.Builder
	fragments := newFragmentTable()
	finishReason := ""

	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			emit(ctx, events, TurnEvent{Kind: EventFailed, Text: "stream error: " + err.Error()})
			return roundOutcome{terminalSent: true}
		}
		if chunk == nil {
			break
		}

		if chunk.TextDelta != "" {
			// Re-emit verbatim as it arrives; never buffer to the end.
			text.WriteString(chunk.TextDelta)
			if !emit(ctx, events, TurnEvent{Kind: EventTextDelta, Text: chunk.TextDelta}) {
				return roundOutcome{terminalSent: true}
			}
		}

		for _, delta := range chunk.ToolCallDeltas {
			fragments.add(delta)
		}

		if chunk.Done {
			finishReason = chunk.FinishReason
		}
	}

	// A fragment set is complete only when the terminal stream signal names
	// tool_calls as the stop reason.
	if finishReason != llm.FinishToolCalls || fragments.empty() {
		emit(ctx, events, TurnEvent{Kind: EventFinished, Text: text.String()})
		return roundOutcome{terminalSent: true}
	}

	invocations := fragments.complete()
	o.logger.Debug("resolving tool invocations",
		zap.Int("count", len(invocations)),
	)

	next := appendMessage(transcript, assistantToolCallMessage(text.String(), invocations))

	suspended := false
	for _, inv := range invocations {
		switch inv.Name {
		case ToolSynthesizeDiagram:
			next = o.resolveSynthesize(ctx, inv, next, events)

		case ToolInspectCanvas:
			// Host-resolvable: only the caller's scene-graph host can
			// answer. No continuation call happens on this side.
			if !emit(ctx, events, TurnEvent{Kind: EventInspectionRequested, InvocationID: inv.ID}) {
				return roundOutcome{terminalSent: true}
			}
			suspended = true

		default:
			output := fmt.Sprintf("unknown tool %q", inv.Name)
			next = appendMessage(next, llm.NewToolResultMessage(inv.ID, output, true))
			if !emit(ctx, events, TurnEvent{Kind: EventToolResult, InvocationID: inv.ID, ToolOutput: output, ToolIsError: true}) {
				return roundOutcome{terminalSent: true}
			}
		}
	}

	if suspended {
		emit(ctx, events, TurnEvent{Kind: EventSuspended})
		return roundOutcome{terminalSent: true}
	}

	return roundOutcome{transcript: next}
}

// resolveSynthesize executes a synthesize_diagram invocation locally and
// appends its synthetic tool result so the conversation can continue without
// another network round trip to the caller.
func (o *Orchestrator) resolveSynthesize(ctx context.Context, inv Invocation, transcript []llm.Message, events chan<- TurnEvent) []llm.Message {
	result, err := executeSynthesize(inv)
	if err != nil {
		// Malformed arguments are isolated to this invocation; the rest of
		// the turn proceeds.
		output := err.Error()
		emit(ctx, events, TurnEvent{Kind: EventToolResult, InvocationID: inv.ID, ToolOutput: output, ToolIsError: true})
		return appendMessage(transcript, llm.NewToolResultMessage(inv.ID, output, true))
	}

	emit(ctx, events, TurnEvent{Kind: EventDiagramReady, Diagram: result})

	output, isError := diagramToolOutput(result)
	emit(ctx, events, TurnEvent{Kind: EventToolResult, InvocationID: inv.ID, ToolOutput: output, ToolIsError: isError})
	return appendMessage(transcript, llm.NewToolResultMessage(inv.ID, output, isError))
}

// assistantToolCallMessage builds the assistant message recording the
// accumulated text and tool calls of a stopped stream.
func assistantToolCallMessage(text string, invocations []Invocation) llm.Message {
	msg := llm.Message{Role: "assistant"}
	if text != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: "text", Text: text})
	}
	for _, inv := range invocations {
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      "tool_use",
			ToolUseID: inv.ID,
			ToolName:  inv.Name,
			ToolArgs:  inv.Args,
		})
	}
	return msg
}

// appendMessage derives a new transcript; the input slice is never mutated.
func appendMessage(transcript []llm.Message, msg llm.Message) []llm.Message {
	next := make([]llm.Message, 0, len(transcript)+1)
	next = append(next, transcript...)
	return append(next, msg)
}

// validateResumeTranscript enforces the resume contract: every tool call an
// assistant message announces must be answered by a later tool-result
// message before a new inference call may be opened.
func validateResumeTranscript(transcript []llm.Message) error {
	pending := make(map[string]bool)

	for i := range transcript {
		msg := &transcript[i]
		for _, call := range msg.ToolCalls() {
			pending[call.ToolUseID] = true
		}
		for _, id := range msg.ToolResultIDs() {
			delete(pending, id)
		}
	}

	if len(pending) > 0 {
		return fmt.Errorf("transcript has %d unanswered tool call(s); a resume must supply one tool result per pending call", len(pending))
	}
	return nil
}
