package api

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/orchestrator"
	"github.com/flowcanvas/flowcanvas/pkg/quota"
	"github.com/flowcanvas/flowcanvas/pkg/sse"
)

// chatRequest is the turn submission body.
type chatRequest struct {
	Messages []incomingMessage `json:"messages"`
}

// incomingMessage mirrors the OpenAI message shape so web clients can submit
// transcripts — including resume transcripts carrying tool calls and tool
// results — without a bespoke format.
type incomingMessage struct {
	Role       string             `json:"role"`
	Content    any                `json:"content"`
	ToolCalls  []incomingToolCall `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type incomingToolCall struct {
	ID       string `json:"id"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// streamPayload is the JSON body of one SSE data event in the turn stream.
type streamPayload struct {
	Type       string `json:"type"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`
	Args       any    `json:"args,omitempty"`
	Output     string `json:"output,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
	Message    string `json:"message,omitempty"`
}

// diagramArgs is the tool-call args payload for a synthesized diagram. The
// client applies Elements to its scene-graph host under MergeMode and
// re-frames the view around their bounding box.
type diagramArgs struct {
	DDL         string `json:"ddl"`
	MergeMode   string `json:"mergeMode"`
	Description string `json:"description,omitempty"`
	Elements    any    `json:"elements,omitempty"`
	Error       string `json:"error,omitempty"`
}

// quotaExceededResponse is the 429 body. IsGuest distinguishes the
// anonymous-limit case so the client can present upgrade messaging.
type quotaExceededResponse struct {
	Error     string     `json:"error"`
	IsGuest   bool       `json:"isGuest,omitempty"`
	UsageInfo *usageInfo `json:"usageInfo,omitempty"`
}

type usageInfo struct {
	TimeFrame      string     `json:"timeFrame"`
	RemainingUsage int        `json:"remainingUsage"`
	Limit          int        `json:"limit"`
	ResetsAt       *time.Time `json:"resetsAt,omitempty"`
}

// handleChat gates the turn through admission, then streams the
// orchestrator's events as SSE.
func (s *Server) handleChat(c *fiber.Ctx) error {
	// A missing model credential is a deployment configuration error,
	// never a caller error.
	if s.runner == nil {
		s.logger.Error("turn submitted but no model credential is configured")
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "model is not configured"})
	}

	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.Messages == nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "messages is required and must be a list"})
	}

	identity, authenticated := resolveIdentity(c)

	// Admission is decided before any inference call is made.
	decision, err := s.evaluateQuota(c.Context(), identity)
	if err != nil {
		s.logger.Error("quota evaluation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "quota evaluation failed"})
	}

	if !decision.Allowed {
		resp := quotaExceededResponse{Error: "usage limit reached"}
		if authenticated {
			resp.UsageInfo = &usageInfo{
				TimeFrame:      "monthly",
				RemainingUsage: decision.Remaining,
				Limit:          decision.Limit,
				ResetsAt:       decision.ResetsAt,
			}
		} else {
			resp.IsGuest = true
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(resp)
	}

	transcript := convertIncoming(req.Messages)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe + SetBodyStream gives direct backpressure and true per-chunk
	// streaming: pw.Write blocks until fasthttp flushes to the socket.
	pr, pw := io.Pipe()
	go s.streamTurn(transcript, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// evaluateQuota computes the admission decision for one identity.
func (s *Server) evaluateQuota(ctx context.Context, identity quota.Identity) (quota.Decision, error) {
	now := time.Now()
	policy := quota.PolicyFor(identity.Class)

	used, err := s.ledger.CountSuccessful(ctx, identity.Key, quota.WindowStart(policy.WindowKind, now))
	if err != nil {
		return quota.Decision{}, err
	}

	return quota.Evaluate(policy, used, now), nil
}

// streamTurn consumes orchestrator events and writes the SSE wire format to
// the pipe. A write failure means the client went away; the turn context is
// cancelled so the orchestrator stops consuming the model stream.
//
// Runs with context.Background() rather than the fiber context because
// fasthttp recycles its RequestCtx after the handler returns, while this
// goroutine outlives it.
func (s *Server) streamTurn(transcript []llm.Message, pw *io.PipeWriter) {
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := sse.NewWriter(pw)
	events := s.runner.RunTurn(ctx, transcript)

	for ev := range events {
		payload, ok := payloadFor(&ev)
		if !ok {
			continue
		}
		if err := w.WriteJSON(payload); err != nil {
			s.logger.Debug("client disconnected mid-stream", zap.Error(err))
			cancel()
			for range events {
				// Drain so the orchestrator goroutine can exit.
			}
			return
		}
	}

	if err := w.WriteDone(); err != nil {
		s.logger.Debug("client disconnected before stream end", zap.Error(err))
	}
}

// payloadFor maps a turn event onto its wire payload. The second return is
// false for events with no wire representation.
func payloadFor(ev *orchestrator.TurnEvent) (*streamPayload, bool) {
	switch ev.Kind {
	case orchestrator.EventTextDelta:
		return &streamPayload{Type: "text", Content: ev.Text}, true

	case orchestrator.EventDiagramReady:
		return &streamPayload{
			Type:       "tool-call",
			ToolCallID: ev.Diagram.InvocationID,
			ToolName:   orchestrator.ToolSynthesizeDiagram,
			Args: diagramArgs{
				DDL:         ev.Diagram.Spec.DDLText,
				MergeMode:   string(ev.Diagram.Spec.MergeMode),
				Description: ev.Diagram.Spec.Description,
				Elements:    ev.Diagram.Elements,
				Error:       ev.Diagram.Err,
			},
		}, true

	case orchestrator.EventInspectionRequested:
		return &streamPayload{
			Type:       "tool-call",
			ToolCallID: ev.InvocationID,
			ToolName:   orchestrator.ToolInspectCanvas,
			Args:       map[string]any{},
		}, true

	case orchestrator.EventToolResult:
		return &streamPayload{
			Type:       "tool-result",
			ToolCallID: ev.InvocationID,
			Output:     ev.ToolOutput,
			IsError:    ev.ToolIsError,
		}, true

	case orchestrator.EventFinished:
		return &streamPayload{Type: "finish", Content: ev.Text}, true

	case orchestrator.EventFailed:
		return &streamPayload{Type: "error", Message: ev.Text}, true

	default:
		// Suspension is implicit on the wire: the stream ends after an
		// unanswered inspect_canvas tool-call and before any finish.
		return nil, false
	}
}

// convertIncoming maps the wire transcript onto internal messages.
func convertIncoming(messages []incomingMessage) []llm.Message {
	converted := make([]llm.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == "tool" && msg.ToolCallID != "" {
			text, _ := msg.Content.(string)
			converted = append(converted, llm.NewToolResultMessage(msg.ToolCallID, text, false))
			continue
		}

		out := llm.Message{Role: msg.Role}

		switch content := msg.Content.(type) {
		case string:
			if content != "" {
				out.Content = append(out.Content, llm.ContentBlock{Type: "text", Text: content})
			}
		case []any:
			// Multimodal content (e.g. an uploaded sketch image)
			for _, item := range content {
				part, ok := item.(map[string]any)
				if !ok {
					continue
				}
				cb := llm.ContentBlock{}
				if t, ok := part["type"].(string); ok {
					cb.Type = t
				}
				if text, ok := part["text"].(string); ok {
					cb.Text = text
				}
				if imageURL, ok := part["image_url"].(map[string]any); ok {
					cb.Type = "image"
					if url, ok := imageURL["url"].(string); ok {
						cb.ImageURL = url
					}
				}
				out.Content = append(out.Content, cb)
			}
		}

		for _, tc := range msg.ToolCalls {
			out.Content = append(out.Content, llm.ContentBlock{
				Type:      "tool_use",
				ToolUseID: tc.ID,
				ToolName:  tc.Function.Name,
				ToolArgs:  tc.Function.Arguments,
			})
		}

		converted = append(converted, out)
	}

	return converted
}
