package sse

import (
	"encoding/json"
	"fmt"
	"io"
)

// doneSentinel terminates every turn stream, mirroring the OpenAI convention
// so generic SSE clients can reuse their existing handling.
const doneSentinel = "data: [DONE]\n\n"

// Writer emits "data: <json>\n\n" events to an underlying io.Writer.
// Each WriteJSON call produces exactly one event; the caller is responsible
// for any flushing semantics of the underlying writer (an io.Pipe gives
// per-write backpressure for free).
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting events to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteJSON marshals v and writes it as a single SSE data event.
func (w *Writer) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling SSE payload: %w", err)
	}

	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("writing SSE event: %w", err)
	}
	return nil
}

// WriteDone writes the literal [DONE] sentinel that terminates the stream.
func (w *Writer) WriteDone() error {
	if _, err := io.WriteString(w.w, doneSentinel); err != nil {
		return fmt.Errorf("writing SSE done sentinel: %w", err)
	}
	return nil
}
