package llm

// ChatRequest represents a provider-agnostic chat completion request.
// This is the internal representation the orchestrator builds before the
// provider client translates it to a provider-specific wire format.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o", "claude-sonnet-4")
	Model string `json:"model"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// System prompt (some providers handle this separately from messages)
	System string `json:"system,omitempty"`

	// Tools the model may call during this request
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ToolDefinition describes a callable function exposed to the model.
// Parameters is a JSON Schema object in the provider-neutral form.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// WithMessages derives a new request carrying the given transcript.
// The original request is never mutated; every continuation round gets
// its own copy of the message slice.
func (r *ChatRequest) WithMessages(messages []Message) *ChatRequest {
	derived := *r
	derived.Messages = make([]Message, len(messages))
	copy(derived.Messages, messages)
	return &derived
}
