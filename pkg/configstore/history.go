package configstore

import (
	"fmt"
)

// History is a ring buffer of earlier device snapshots.
type History struct {
	entries []*Snapshot
	maxSize int
}

// NewHistory creates a new History with the given maximum size.
func NewHistory(maxSize int) *History {
	return &History{
		maxSize: maxSize,
	}
}

// Push adds a snapshot, dropping the oldest when full.
func (h *History) Push(snap *Snapshot) {
	h.entries = append(h.entries, snap)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
}

// Get returns the nth most recent entry (0 = most recent).
func (h *History) Get(n int) (*Snapshot, error) {
	if n < 0 || n >= len(h.entries) {
		return nil, fmt.Errorf("rollback %d: no such snapshot (have %d entries)",
			n, len(h.entries))
	}
	return h.entries[len(h.entries)-1-n], nil
}

// Len returns the number of history entries.
func (h *History) Len() int {
	return len(h.entries)
}

// List returns all entries, most recent first.
func (h *History) List() []*Snapshot {
	result := make([]*Snapshot, len(h.entries))
	for i, entry := range h.entries {
		result[len(h.entries)-1-i] = entry
	}
	return result
}
