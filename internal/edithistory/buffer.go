// Package edithistory implements the local, per-user undo/redo buffer over
// in-progress document edits. It is independent of the network layer: only
// locally authored edits flow through it, and it never reflects
// server-confirmed state.
package edithistory

import "time"

const DefaultDepth = 100

// Entry is one recorded edit state.
type Entry struct {
	Sequence  uint64
	SectionID string
	Content   string
	At        time.Time
}

// Buffer is a bounded linear undo/redo history. Pushing a new state discards
// any redo entries beyond the cursor; once the configured depth is exceeded
// the oldest entry is evicted.
//
// Buffer is not safe for concurrent use; edits for one user are pushed from a
// single flow.
type Buffer struct {
	entries []Entry
	cursor  int // index of the current entry; -1 when empty
	depth   int
	nextSeq uint64
}

func NewBuffer(depth int) *Buffer {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Buffer{cursor: -1, depth: depth}
}

// Push records a new edit state, discarding any entries past the cursor.
func (b *Buffer) Push(sectionID, content string) Entry {
	b.nextSeq++
	entry := Entry{
		Sequence:  b.nextSeq,
		SectionID: sectionID,
		Content:   content,
		At:        time.Now(),
	}
	b.entries = append(b.entries[:b.cursor+1], entry)
	if len(b.entries) > b.depth {
		b.entries = b.entries[len(b.entries)-b.depth:]
	}
	b.cursor = len(b.entries) - 1
	return entry
}

// Undo moves the cursor back one position and returns that state.
// It reports false when there is nothing earlier to return.
func (b *Buffer) Undo() (Entry, bool) {
	if b.cursor <= 0 {
		return Entry{}, false
	}
	b.cursor--
	return b.entries[b.cursor], true
}

// Redo moves the cursor forward one position and returns that state.
// It reports false when the cursor is already at the newest entry.
func (b *Buffer) Redo() (Entry, bool) {
	if b.cursor < 0 || b.cursor >= len(b.entries)-1 {
		return Entry{}, false
	}
	b.cursor++
	return b.entries[b.cursor], true
}

// Current returns the entry at the cursor, if any.
func (b *Buffer) Current() (Entry, bool) {
	if b.cursor < 0 {
		return Entry{}, false
	}
	return b.entries[b.cursor], true
}

func (b *Buffer) CanUndo() bool { return b.cursor > 0 }

func (b *Buffer) CanRedo() bool { return b.cursor >= 0 && b.cursor < len(b.entries)-1 }

func (b *Buffer) Len() int { return len(b.entries) }

// Clear drops all history, e.g. when the open document changes.
func (b *Buffer) Clear() {
	b.entries = nil
	b.cursor = -1
}
