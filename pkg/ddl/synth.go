package ddl

import (
	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// Layout constants. Nodes are laid out in BFS ranks along the flow axis.
const (
	nodeWidth  = 160.0
	nodeHeight = 60.0
	rankGap    = 240.0
	siblingGap = 120.0
)

// Synthesize converts DDL text into scene elements with fresh ids and AI
// provenance. It is the full two-stage pipeline: parse, then materialize.
func Synthesize(text string) ([]scene.Element, error) {
	g, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return g.Materialize(), nil
}

// Materialize assigns geometry and host identity to the skeleton.
func (g *Graph) Materialize() []scene.Element {
	ranks := g.ranks()

	// Position nodes rank by rank, tracking how many nodes each rank holds.
	perRank := make(map[int]int)
	ids := make(map[string]string, len(g.Nodes))
	elements := make([]scene.Element, 0, len(g.Nodes)+len(g.Edges))

	for _, node := range g.Nodes {
		rank := ranks[node.ID]
		slot := perRank[rank]
		perRank[rank]++

		x, y := g.position(rank, slot)
		id := uuid.NewString()
		ids[node.ID] = id

		elements = append(elements, scene.Element{
			ID:         id,
			Kind:       scene.KindNode,
			X:          x,
			Y:          y,
			Width:      nodeWidth,
			Height:     nodeHeight,
			Text:       node.Label,
			Shape:      node.Shape,
			Provenance: scene.ProvenanceAI,
		})
	}

	nodeByID := make(map[string]*scene.Element, len(elements))
	for i := range elements {
		nodeByID[elements[i].ID] = &elements[i]
	}

	for _, edge := range g.Edges {
		source := nodeByID[ids[edge.From]]
		target := nodeByID[ids[edge.To]]

		elements = append(elements, scene.Element{
			ID:         uuid.NewString(),
			Kind:       scene.KindEdge,
			X:          (source.CenterX() + target.CenterX()) / 2,
			Y:          (source.CenterY() + target.CenterY()) / 2,
			Text:       edge.Label,
			Source:     source.ID,
			Target:     target.ID,
			Provenance: scene.ProvenanceAI,
		})
	}

	return elements
}

// position maps a (rank, slot) pair to canvas coordinates for the graph's
// flow direction.
func (g *Graph) position(rank, slot int) (x, y float64) {
	along := float64(rank) * rankGap
	across := float64(slot) * siblingGap

	switch g.Direction {
	case "LR":
		return along, across
	case "RL":
		return -along, across
	case "BT":
		return across, -along
	default: // TB
		return across, along
	}
}

// ranks computes a BFS layering: indegree-0 nodes are rank 0, and each edge
// pushes its target at least one rank past its source. Cycles are tolerated
// by seeding from the first declared node when no root exists.
func (g *Graph) ranks() map[string]int {
	indegree := make(map[string]int, len(g.Nodes))
	adjacent := make(map[string][]string, len(g.Nodes))
	for _, node := range g.Nodes {
		indegree[node.ID] = 0
	}
	for _, edge := range g.Edges {
		adjacent[edge.From] = append(adjacent[edge.From], edge.To)
		indegree[edge.To]++
	}

	ranks := make(map[string]int, len(g.Nodes))
	var queue []string
	for _, node := range g.Nodes {
		if indegree[node.ID] == 0 {
			ranks[node.ID] = 0
			queue = append(queue, node.ID)
		}
	}
	if len(queue) == 0 && len(g.Nodes) > 0 {
		first := g.Nodes[0].ID
		ranks[first] = 0
		queue = append(queue, first)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range adjacent[current] {
			proposed := ranks[current] + 1
			// A rank can never legitimately exceed the node count; this
			// bounds relaxation on cyclic graphs.
			if proposed >= len(g.Nodes) {
				continue
			}
			if existing, ok := ranks[next]; ok && existing >= proposed {
				continue
			}
			ranks[next] = proposed
			queue = append(queue, next)
		}
	}

	// Disconnected nodes that BFS never reached sit at rank 0.
	for _, node := range g.Nodes {
		if _, ok := ranks[node.ID]; !ok {
			ranks[node.ID] = 0
		}
	}

	return ranks
}
