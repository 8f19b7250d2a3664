package testutil

import (
	"slices"
	"sync"
)

// DeterministicClock is a session.Clock that remembers every sequence
// number it hands out, so a test can check which patches reached the log.
type DeterministicClock struct {
	mu     sync.Mutex
	seq    int64
	issued []int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// NewDeterministicClockAt returns a clock positioned at start, as a session
// reopened after start logged patches would be.
func NewDeterministicClockAt(start int64) *DeterministicClock {
	return &DeterministicClock{seq: start}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.issued = append(c.issued, c.seq)
	return c.seq
}

func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Issued returns the sequence numbers handed out so far, oldest first.
func (c *DeterministicClock) Issued() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.issued)
}
