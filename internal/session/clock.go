package session

import "sync/atomic"

// Clock hands out the logical sequence numbers that order an endpoint's
// patch log. Sequence numbers, never timestamps, decide replay order.
type Clock interface {
	// Next returns the next sequence number and advances the clock.
	Next() int64

	// Current returns the last sequence number handed out.
	Current() int64
}

// LogicalClock is a monotonic logical clock.
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
// A Session serializes its own calls, so contention only arises when one
// clock is shared between sessions.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a new clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a clock positioned at start.
// Used after replay to resume from the last logged patch.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
