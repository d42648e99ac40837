package scene

import "sync"

// Document is an in-memory scene-graph host for one drawing document.
// Reads return snapshot copies and writes swap the whole element list under
// the lock, so a concurrent reader never observes a partially applied merge.
type Document struct {
	// mu guards elements. Only one write may be applied at a time.
	mu       sync.RWMutex
	elements []Element
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Elements returns a snapshot copy of the current scene.
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snapshot := make([]Element, len(d.elements))
	copy(snapshot, d.elements)
	return snapshot
}

// SetElements atomically replaces the scene contents.
func (d *Document) SetElements(elements []Element) {
	next := make([]Element, len(elements))
	copy(next, elements)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements = next
}

// Update applies fn to the current scene and swaps in its result under a
// single critical section, so concurrent merges serialize and a reader never
// observes an intermediate state. fn receives a copy it may freely consume.
func (d *Document) Update(fn func(elements []Element) []Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snapshot := make([]Element, len(d.elements))
	copy(snapshot, d.elements)
	d.elements = fn(snapshot)
}

// Len returns the current element count.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.elements)
}
