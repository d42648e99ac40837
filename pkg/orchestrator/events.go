package orchestrator

import (
	"github.com/flowcanvas/flowcanvas/pkg/merge"
	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// EventKind discriminates TurnEvent variants.
type EventKind string

const (
	// EventTextDelta carries incremental assistant text, re-emitted
	// verbatim as it arrives from the model stream.
	EventTextDelta EventKind = "text_delta"

	// EventDiagramReady carries a synthesized diagram (or the conversion
	// failure reason when the DDL did not parse).
	EventDiagramReady EventKind = "diagram_ready"

	// EventInspectionRequested signals a canvas inspection that only the
	// caller's scene-graph host can answer.
	EventInspectionRequested EventKind = "inspection_requested"

	// EventToolResult is a diagnostic echo of a synthetic tool result the
	// orchestrator appended to the transcript.
	EventToolResult EventKind = "tool_result"

	// EventSuspended terminates a turn that is waiting on a host-supplied
	// tool result. The caller resumes by re-invoking RunTurn with the
	// extended transcript.
	EventSuspended EventKind = "suspended"

	// EventFinished terminates a completed turn and carries the final
	// accumulated assistant text.
	EventFinished EventKind = "finished"

	// EventFailed terminates a turn that could not complete.
	EventFailed EventKind = "failed"
)

// TurnEvent is one item in the event stream produced by RunTurn.
// Exactly one terminal event (Suspended, Finished or Failed) ends every
// stream, after which the channel is closed.
type TurnEvent struct {
	Kind EventKind

	// Text is the delta for EventTextDelta, the final text for
	// EventFinished, and the failure reason for EventFailed.
	Text string

	// Diagram is set for EventDiagramReady.
	Diagram *DiagramResult

	// InvocationID is set for EventInspectionRequested and
	// EventToolResult.
	InvocationID string

	// ToolOutput and ToolIsError are set for EventToolResult.
	ToolOutput  string
	ToolIsError bool
}

// DiagramSpec is the parsed payload of a synthesize_diagram invocation.
type DiagramSpec struct {
	DDLText     string     `json:"ddl"`
	MergeMode   merge.Mode `json:"mergeMode"`
	Description string     `json:"description,omitempty"`
}

// DiagramResult is a DiagramSpec together with its synthesis outcome.
// Err carries the conversion failure reason; Elements is nil in that case
// and the scene must be left untouched.
type DiagramResult struct {
	InvocationID string          `json:"invocation_id"`
	Spec         DiagramSpec     `json:"spec"`
	Elements     []scene.Element `json:"elements,omitempty"`
	Err          string          `json:"error,omitempty"`
}

// terminal reports whether the event ends the stream.
func (e *TurnEvent) terminal() bool {
	switch e.Kind {
	case EventSuspended, EventFinished, EventFailed:
		return true
	default:
		return false
	}
}
