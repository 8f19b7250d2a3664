package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator hands out predictable patch IDs: "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// It satisfies session.IDGenerator. Session logs written with it are
// byte-identical across runs, which keeps golden comparisons stable.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDGenerator creates a generator. An empty prefix becomes "patch".
func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	if prefix == "" {
		prefix = "patch"
	}
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
