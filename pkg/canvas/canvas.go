// Package canvas derives a structured breakdown and a natural-language
// description of the current scene, for injection back into the model's
// context. Analysis is a pure function over a snapshot of elements; nothing
// here is cached between turns.
package canvas

import (
	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// EmptyDescription is the fixed sentence for a scene with no elements.
const EmptyDescription = "The canvas is currently empty with no elements."

// Snapshot is the structured view of one scene at one instant.
type Snapshot struct {
	Nodes []NodeEntry `json:"nodes"`
	Edges []EdgeEntry `json:"edges"`

	ElementCount      int  `json:"element_count"`
	HasPriorAIDiagram bool `json:"has_prior_ai_diagram"`

	// LastSynthesizedDDL is supplied by the caller from its own session
	// memory via WithLastDDL; it is never derived from the scene.
	LastSynthesizedDDL string `json:"last_synthesized_ddl,omitempty"`

	// Groups are spatial clusters of node ids, used only for the
	// description, never for merge decisions.
	Groups [][]string `json:"groups,omitempty"`

	Description string `json:"description"`
}

// NodeEntry records one node-like element.
type NodeEntry struct {
	ID         string           `json:"id"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
	Text       string           `json:"text,omitempty"`
	Shape      string           `json:"shape,omitempty"`
	Provenance scene.Provenance `json:"provenance"`
}

// EdgeEntry records one edge-like element and its bound endpoints.
// Source and Target are empty for unbound edges.
type EdgeEntry struct {
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
	Text   string `json:"text,omitempty"`
}

// WithLastDDL attaches the caller's remembered DDL to the snapshot.
func (s Snapshot) WithLastDDL(ddl string) Snapshot {
	s.LastSynthesizedDDL = ddl
	return s
}

// Analyze partitions the elements into nodes and edges, clusters them
// spatially, and generates the prose description. It is deterministic and
// idempotent over an unchanged scene.
func Analyze(elements []scene.Element) Snapshot {
	snapshot := Snapshot{
		ElementCount: len(elements),
		Nodes:        []NodeEntry{},
		Edges:        []EdgeEntry{},
	}

	for _, el := range elements {
		if el.Provenance == scene.ProvenanceAI {
			snapshot.HasPriorAIDiagram = true
		}

		if el.IsEdge() {
			snapshot.Edges = append(snapshot.Edges, EdgeEntry{
				ID:     el.ID,
				Source: el.Source,
				Target: el.Target,
				Text:   el.Text,
			})
			continue
		}

		snapshot.Nodes = append(snapshot.Nodes, NodeEntry{
			ID:         el.ID,
			X:          el.X,
			Y:          el.Y,
			Width:      el.Width,
			Height:     el.Height,
			Text:       el.Text,
			Shape:      el.Shape,
			Provenance: el.Provenance,
		})
	}

	snapshot.Groups = clusterElements(elements)
	snapshot.Description = describe(&snapshot)

	return snapshot
}
