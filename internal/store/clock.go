package store

import "sync/atomic"

// Clock is a monotonic logical clock for record ordering.
//
// All records are stamped with a strictly increasing seq number from this
// clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
// - Causal relationships are explicit
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume the clock from the last recorded position when a store
// is reopened.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
// Useful for querying the clock's position (e.g., for checkpointing).
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
