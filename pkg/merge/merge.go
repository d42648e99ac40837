// Package merge reconciles newly synthesized elements into an existing scene
// under a replace/extend policy. Replace discards exactly the elements the
// pipeline previously synthesized (AI provenance) and keeps everything a
// human authored; extend keeps the whole scene and unions in the new
// elements.
package merge

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// Mode is the merge policy chosen by the caller from a DiagramSpec.
type Mode string

const (
	ModeReplace Mode = "replace"
	ModeExtend  Mode = "extend"
)

// ParseMode validates a wire-format mode string. An empty string defaults to
// replace, matching the behavior the model is prompted with.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeExtend:
		return Mode(s), nil
	case "":
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("merge: unknown mode %q", s)
	}
}

// Merge combines the existing scene with incoming elements under the given
// mode. Neither input slice is mutated.
func Merge(existing, incoming []scene.Element, mode Mode) []scene.Element {
	result := make([]scene.Element, 0, len(existing)+len(incoming))

	for _, el := range existing {
		if mode == ModeReplace && el.Provenance == scene.ProvenanceAI {
			continue
		}
		result = append(result, el)
	}

	return append(result, incoming...)
}

// Apply performs the merge against a live document and returns the bounding
// box of the incoming elements so the caller can re-frame its viewport.
// The merge runs inside the document's critical section, so concurrent
// merges serialize and readers observe either the old or the new scene.
func Apply(doc *scene.Document, incoming []scene.Element, mode Mode) (scene.Box, bool) {
	doc.Update(func(existing []scene.Element) []scene.Element {
		return Merge(existing, incoming, mode)
	})
	return scene.Bounds(incoming)
}
