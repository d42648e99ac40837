// Package scene models the drawing canvas as a flat list of elements.
// Elements are either nodes (positioned boxes, optionally with text) or
// edges (directed connections between two node ids). Every element carries
// a provenance tag recording whether it was synthesized by the pipeline or
// authored by a human; the tag is set at creation and never changes.
package scene

// Kind distinguishes node-like and edge-like elements.
type Kind string

const (
	KindNode Kind = "node"
	KindEdge Kind = "edge"
)

// Provenance records who created an element. It is the sole signal used to
// decide what a replace-merge discards.
type Provenance string

const (
	ProvenanceAI   Provenance = "ai"
	ProvenanceUser Provenance = "user"
)

// Element is a single item on the canvas.
type Element struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Geometry. For edges the position is advisory (midpoint of the
	// connected nodes at synthesis time).
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// Text is the element label, if any.
	Text string `json:"text,omitempty"`

	// Shape is the node shape hint ("rect", "round", "diamond", "circle").
	Shape string `json:"shape,omitempty"`

	// Source and Target are the endpoint element ids for edges.
	// Empty when an edge is unbound.
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	Provenance Provenance `json:"provenance"`
}

// IsEdge reports whether the element is edge-like.
func (e *Element) IsEdge() bool {
	return e.Kind == KindEdge
}

// CenterX returns the x coordinate of the element centroid.
func (e *Element) CenterX() float64 {
	return e.X + e.Width/2
}

// CenterY returns the y coordinate of the element centroid.
func (e *Element) CenterY() float64 {
	return e.Y + e.Height/2
}

// Box is an axis-aligned bounding box.
type Box struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Bounds computes the bounding box of the given elements, so a caller can
// re-frame its viewport around newly added content. The second return is
// false when the slice holds no positioned elements.
func Bounds(elements []Element) (Box, bool) {
	found := false
	var box Box

	for _, el := range elements {
		if el.IsEdge() {
			continue
		}
		if !found {
			box = Box{MinX: el.X, MinY: el.Y, MaxX: el.X + el.Width, MaxY: el.Y + el.Height}
			found = true
			continue
		}
		box.MinX = min(box.MinX, el.X)
		box.MinY = min(box.MinY, el.Y)
		box.MaxX = max(box.MaxX, el.X+el.Width)
		box.MaxY = max(box.MaxY, el.Y+el.Height)
	}

	return box, found
}
