package canvas

import (
	"fmt"
	"strings"

	"github.com/flowcanvas/flowcanvas/pkg/utils"
)

const (
	// maxListedTexts caps how many distinct labels the description lists.
	maxListedTexts = 8

	// maxLabelLen keeps individual labels short in the prose.
	maxLabelLen = 40
)

// boundaryWords are label fragments suggesting a start or end node.
var boundaryWords = []string{"start", "begin", "end", "finish", "done", "stop"}

// describe builds the rule-based prose summary of a snapshot.
func describe(s *Snapshot) string {
	if s.ElementCount == 0 {
		return EmptyDescription
	}

	var sentences []string

	sentences = append(sentences, fmt.Sprintf(
		"The canvas contains %s and %s.",
		plural(len(s.Nodes), "node"),
		plural(len(s.Edges), "connection"),
	))

	if texts := distinctTexts(s); len(texts) > 0 {
		listed := texts
		suffix := ""
		if len(listed) > maxListedTexts {
			listed = listed[:maxListedTexts]
			suffix = ", and more"
		}
		sentences = append(sentences, fmt.Sprintf(
			"Labeled elements include %s%s.",
			strings.Join(listed, ", "), suffix,
		))
	}

	if n := countShape(s, "diamond"); n > 0 {
		sentences = append(sentences, fmt.Sprintf(
			"The diagram has %s, indicating branching logic.",
			plural(n, "decision point"),
		))
	}

	if len(s.Edges) > 0 && !hasBoundaryText(s) {
		sentences = append(sentences, "The flow has connections but no clearly marked start or end point.")
	}

	if s.HasPriorAIDiagram {
		sentences = append(sentences, "Part of the canvas was previously generated from a description.")
	}

	return strings.Join(sentences, " ")
}

// distinctTexts returns quoted node and edge labels in scene order,
// first occurrence wins.
func distinctTexts(s *Snapshot) []string {
	seen := make(map[string]bool)
	var texts []string

	add := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		texts = append(texts, fmt.Sprintf("%q", utils.Truncate(text, maxLabelLen)))
	}

	for _, node := range s.Nodes {
		add(node.Text)
	}
	for _, edge := range s.Edges {
		add(edge.Text)
	}

	return texts
}

func countShape(s *Snapshot, shape string) int {
	n := 0
	for _, node := range s.Nodes {
		if node.Shape == shape {
			n++
		}
	}
	return n
}

// hasBoundaryText reports whether any node label suggests a start or end
// boundary for the flow.
func hasBoundaryText(s *Snapshot) bool {
	for _, node := range s.Nodes {
		lower := strings.ToLower(node.Text)
		for _, word := range boundaryWords {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
