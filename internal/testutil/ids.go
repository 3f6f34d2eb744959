package testutil

import (
	"fmt"
	"sync"
)

// DeterministicIDs generates "<prefix>-0001", "<prefix>-0002", ... for
// generate_id().
//
// Unlike engine.SequenceGenerator, DeterministicIDs can be reset for test
// reuse, so the same scenario run twice yields byte-identical output.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type DeterministicIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewDeterministicIDs creates a generator. An empty prefix means "id".
func NewDeterministicIDs(prefix string) *DeterministicIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &DeterministicIDs{prefix: prefix}
}

// Generate returns the next id. Implements engine.IDGenerator.
func (g *DeterministicIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Count returns how many ids have been generated since the last Reset.
func (g *DeterministicIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Reset restarts the sequence. The next Generate returns "<prefix>-0001".
func (g *DeterministicIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
