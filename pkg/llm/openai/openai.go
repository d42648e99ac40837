// Package openai implements the llm.Streamer interface against the OpenAI
// Chat Completions API (and any compatible upstream).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/sse"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrMissingAPIKey indicates the client was constructed without a credential.
// This is a deployment configuration error, never a caller error.
var ErrMissingAPIKey = errors.New("openai: API key is not configured")

// Client is a streaming Chat Completions client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL overrides the API endpoint (e.g. for compatible upstreams).
	BaseURL string

	// APIKey is the bearer credential. Required.
	APIKey string

	// Model is the default model for requests that do not name one.
	Model string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// NewClient creates a streaming client. A missing API key is reported here
// rather than on first use so the server can fail fast at startup.
func NewClient(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		model:   config.Model,
		logger:  logger,
		httpClient: &http.Client{
			// LLM requests can be slow, especially with tool rounds
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// StreamChat opens a streaming completion and returns the chunk stream.
func (c *Client) StreamChat(ctx context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	wireReq := c.buildRequest(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("opening completion stream",
		zap.String("model", wireReq.Model),
		zap.Int("message_count", len(wireReq.Messages)),
		zap.Int("tool_count", len(wireReq.Tools)),
	)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()

		var errResp errorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("upstream returned %d: %s", httpResp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("upstream returned %d", httpResp.StatusCode)
	}

	return &stream{
		body:   httpResp.Body,
		reader: sse.NewReader(httpResp.Body),
		logger: c.logger,
	}, nil
}

// buildRequest converts the internal request into the Chat Completions wire
// format, mapping tool_use and tool_result content blocks to their OpenAI
// message shapes.
func (c *Client) buildRequest(req *llm.ChatRequest) *chatRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}

	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg)...)
	}

	tools := make([]chatTool, 0, len(req.Tools))
	for _, tool := range req.Tools {
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatToolDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	return &chatRequest{
		Model:       model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      true,
	}
}

// convertMessage maps one internal message onto its wire representation.
// A tool-role message with several tool_result blocks becomes one wire
// message per result, as the Chat Completions API requires.
func convertMessage(msg llm.Message) []chatMessage {
	if msg.Role == "tool" {
		var out []chatMessage
		for _, block := range msg.Content {
			if block.Type != "tool_result" {
				continue
			}
			out = append(out, chatMessage{
				Role:       "tool",
				Content:    block.ToolOutput,
				ToolCallID: block.ToolResultID,
			})
		}
		return out
	}

	converted := chatMessage{Role: msg.Role}

	var parts []chatContentPart
	textOnly := true
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			parts = append(parts, chatContentPart{Type: "text", Text: block.Text})
		case "image":
			url := block.ImageURL
			if url == "" && block.ImageBase64 != "" {
				url = "data:" + block.MediaType + ";base64," + block.ImageBase64
			}
			parts = append(parts, chatContentPart{Type: "image_url", ImageURL: &chatImageURL{URL: url}})
			textOnly = false
		case "tool_use":
			converted.ToolCalls = append(converted.ToolCalls, chatToolCall{
				ID:   block.ToolUseID,
				Type: "function",
				Function: chatToolFunction{
					Name:      block.ToolName,
					Arguments: block.ToolArgs,
				},
			})
		}
	}

	switch {
	case len(parts) == 0:
		// Tool-call-only assistant messages carry empty content.
		converted.Content = nil
	case textOnly && len(parts) == 1:
		converted.Content = parts[0].Text
	default:
		converted.Content = parts
	}

	return []chatMessage{converted}
}

// stream adapts the SSE event sequence to llm.Stream.
type stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	logger *zap.Logger
}

// Next returns the next parsed chunk, skipping unknown or malformed events
// rather than failing the whole stream. Returns (nil, nil) on exhaustion.
func (s *stream) Next(ctx context.Context) (*llm.StreamChunk, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := s.reader.Next()
		if err != nil {
			return nil, fmt.Errorf("reading completion stream: %w", err)
		}
		if ev == nil {
			return nil, nil
		}
		if ev.Data == "[DONE]" {
			return nil, nil
		}

		chunk, ok := parseChunk([]byte(ev.Data))
		if !ok {
			s.logger.Debug("skipping unparseable stream event",
				zap.String("data", ev.Data),
			)
			continue
		}
		return chunk, nil
	}
}

// Close releases the underlying response body, aborting the upstream read.
func (s *stream) Close() error {
	return s.body.Close()
}

// parseChunk converts one SSE data payload into the internal chunk form.
// The second return is false when the payload should be skipped.
func parseChunk(data []byte) (*llm.StreamChunk, bool) {
	var raw chatChunk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false
	}
	if len(raw.Choices) == 0 {
		return nil, false
	}

	choice := raw.Choices[0]
	chunk := &llm.StreamChunk{
		Model:     raw.Model,
		TextDelta: choice.Delta.Content,
	}

	for _, tc := range choice.Delta.ToolCalls {
		chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, llm.ToolCallDelta{
			Index:        tc.Index,
			ID:           tc.ID,
			Name:         tc.Function.Name,
			ArgsFragment: tc.Function.Arguments,
		})
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		chunk.Done = true
		chunk.FinishReason = *choice.FinishReason
	}

	return chunk, true
}
