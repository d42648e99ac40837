package orchestrator

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
)

// fragment accumulates one tool invocation arriving across stream chunks,
// keyed by its stream-assigned slot index. Argument fragments are always
// concatenated in arrival order, never overwritten.
type fragment struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// fragmentTable indexes in-flight fragments by slot.
type fragmentTable struct {
	slots map[int]*fragment
}

func newFragmentTable() *fragmentTable {
	return &fragmentTable{slots: make(map[int]*fragment)}
}

// add merges one delta into its slot. The id and name arrive only on the
// first fragment for a slot; later fragments carry argument text.
func (t *fragmentTable) add(delta llm.ToolCallDelta) {
	slot, ok := t.slots[delta.Index]
	if !ok {
		slot = &fragment{index: delta.Index}
		t.slots[delta.Index] = slot
	}

	if delta.ID != "" {
		slot.id = delta.ID
	}
	if delta.Name != "" {
		slot.name = delta.Name
	}
	slot.args.WriteString(delta.ArgsFragment)
}

// empty reports whether no fragments accumulated.
func (t *fragmentTable) empty() bool {
	return len(t.slots) == 0
}

// Invocation is a completed tool call, ready for classification.
type Invocation struct {
	// ID is the provider-assigned opaque id, or a generated one when the
	// provider omitted it.
	ID string

	// Name is the function name.
	Name string

	// Args is the fully accumulated raw JSON argument string.
	Args string
}

// complete finalizes all slots into invocations ordered by slot index.
// Calling complete is only valid once the stream named tool_calls as its
// stop reason; before that a fragment may still be partial.
func (t *fragmentTable) complete() []Invocation {
	indices := make([]int, 0, len(t.slots))
	for index := range t.slots {
		indices = append(indices, index)
	}
	sort.Ints(indices)

	invocations := make([]Invocation, 0, len(indices))
	for _, index := range indices {
		slot := t.slots[index]
		id := slot.id
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		invocations = append(invocations, Invocation{
			ID:   id,
			Name: slot.name,
			Args: slot.args.String(),
		})
	}
	return invocations
}
