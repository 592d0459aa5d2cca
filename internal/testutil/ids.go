package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator hands out predictable session ids for golden traces.
//
// With a fixed id it returns that id every time. Without one it counts:
// "session-1", "session-2", ...
//
// Thread-safety: safe for concurrent use.
type FixedIDGenerator struct {
	mu sync.Mutex
	id string
	n  int
}

// NewFixedIDGenerator creates a generator. An empty id selects counting.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	return &FixedIDGenerator{id: id}
}

// Generate returns the next id.
func (g *FixedIDGenerator) Generate() string {
	if g.id != "" {
		return g.id
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("session-%d", g.n)
}
