package registry

import "sync/atomic"

// Clock is the monotonic counter behind marker minting.
//
// Every value returned by Next is unique for the Clock's lifetime. The
// package-level clock shared by registries created without WithClock makes
// markers unique across every registry in the process.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

var processClock = NewClock()

// NewClock creates a clock whose first Next returns 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start.
// Used by tests and golden files to get predictable markers.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next unused value and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1) - 1
}

// Current returns the value the next call to Next will return.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
