package testutil

import (
	"sync"
	"time"
)

// FrameLoop is a manual frame source. Callbacks requested with RequestFrame
// run on the next call to Step, never synchronously.
type FrameLoop struct {
	mu       sync.Mutex
	clock    *FakeClock
	budget   time.Duration
	pending  []func(time.Time)
	requests int
	frames   int
}

// NewFrameLoop creates a frame loop whose deadlines are budget after the
// clock's time at the start of each frame. A nil clock gets a fresh one.
func NewFrameLoop(clock *FakeClock, budget time.Duration) *FrameLoop {
	if clock == nil {
		clock = NewFakeClock()
	}
	return &FrameLoop{clock: clock, budget: budget}
}

// RequestFrame queues fn for the next Step.
func (l *FrameLoop) RequestFrame(fn func(deadline time.Time)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, fn)
	l.requests++
}

// Step runs one frame: every callback requested before the call. Callbacks
// requested while the frame runs wait for the following Step. Returns the
// number of callbacks run.
func (l *FrameLoop) Step() int {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.frames++
	deadline := l.clock.Now().Add(l.budget)
	l.mu.Unlock()

	for _, fn := range batch {
		fn(deadline)
	}
	return len(batch)
}

// Drain steps until no callbacks are pending or max frames have run.
// Returns the number of frames stepped.
func (l *FrameLoop) Drain(max int) int {
	n := 0
	for n < max && l.Waiting() > 0 {
		l.Step()
		n++
	}
	return n
}

// Waiting returns the number of callbacks queued for the next Step.
func (l *FrameLoop) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Requests returns the total number of RequestFrame calls.
func (l *FrameLoop) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

// Frames returns the number of Steps taken.
func (l *FrameLoop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
