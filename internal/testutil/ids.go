package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates "<prefix>-0001", "<prefix>-0002", ... so frame IDs
// in traces and golden files are stable across runs.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs returns a generator using prefix, or "frame" if empty.
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "frame"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset starts the sequence over.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
