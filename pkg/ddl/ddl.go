// Package ddl parses the compact diagram description language emitted by the
// model into a layout skeleton, and materializes that skeleton into scene
// elements. The dialect is a flowchart syntax: a direction header followed by
// node and edge statements, e.g.
//
//	flowchart LR
//	  A[Start] --> B{Valid?}
//	  B -->|yes| C[Process]
//	  B -->|no| D[Reject]
//
// Synthesis is two-staged: Parse builds a Graph with relative structure only,
// and Synthesize materializes it into positioned elements with fresh ids and
// AI provenance. A parse failure yields no partial scene.
package ddl

import "fmt"

// Graph is the parsed skeleton: nodes and directed edges with no geometry
// and no host-recognized identity.
type Graph struct {
	// Direction is the flow axis: "LR", "RL", "TB" or "BT".
	Direction string

	Nodes []NodeDef
	Edges []EdgeDef
}

// NodeDef is a declared or referenced node.
type NodeDef struct {
	// ID is the DDL-local identifier (e.g. "A"), unique within the graph.
	ID string

	// Label is the display text. Defaults to the ID when a node is
	// referenced without a bracket form.
	Label string

	// Shape is "rect", "round", "diamond" or "circle".
	Shape string
}

// EdgeDef is a directed connection between two DDL-local node ids.
type EdgeDef struct {
	From  string
	To    string
	Label string
}

// ConversionError reports a DDL text that could not be converted into a
// scene, with a human-readable reason suitable for echoing to the model.
type ConversionError struct {
	Line   int
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ddl: line %d: %s", e.Line, e.Reason)
	}
	return "ddl: " + e.Reason
}

func conversionErr(line int, format string, args ...any) error {
	return &ConversionError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
