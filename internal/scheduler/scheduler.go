// Package scheduler sits between "a sink wants to run" and "it runs",
// batching sink invocations into frames.
//
// # Strategies
//
//   - Batch: one flush per frame runs every queued task.
//   - Debounce: only the latest task per key survives to the flush; the key
//     keeps the queue position of its first registration.
//   - Adaptive: tasks run until a rolling estimate of task cost predicts the
//     frame budget would be exceeded; the rest wait for a new frame. The
//     estimate is a running average or an exponential moving average.
//
// # Guarantees
//
//   - A task whose key reports Disposed() == true is dropped, never run.
//   - At most one frame request is outstanding at any time.
//   - A non-empty queue always has a frame request outstanding, so the
//     queue eventually drains.
//
// Schedulers never touch the document; keys are opaque.
package scheduler

import "time"

// Task is the deferred work: usually a sink function.
type Task func(value any)

// Scheduler defers tasks to the next frame.
type Scheduler interface {
	// Schedule returns a function that, when called, queues task(value)
	// for the next flush instead of running it.
	Schedule(key any, task Task) func(value any)
	// Pending returns the number of queued tasks.
	Pending() int
}

// FrameRequester runs fn once at the start of the next frame. deadline is
// when that frame's time is up.
type FrameRequester interface {
	RequestFrame(fn func(deadline time.Time))
}

// FrameFunc adapts a function to FrameRequester.
type FrameFunc func(fn func(deadline time.Time))

// RequestFrame implements FrameRequester.
func (f FrameFunc) RequestFrame(fn func(deadline time.Time)) { f(fn) }

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// DefaultFrameBudget is one frame at 60Hz.
const DefaultFrameBudget = 16 * time.Millisecond

type disposable interface {
	Disposed() bool
}

func alive(key any) bool {
	d, ok := key.(disposable)
	return !ok || !d.Disposed()
}

type job struct {
	key   any
	task  Task
	value any
}

func (j job) run() {
	if alive(j.key) {
		j.task(j.value)
	}
}

// frameGate enforces the single outstanding frame request.
type frameGate struct {
	frames    FrameRequester
	requested bool
}

func (g *frameGate) request(flush func(time.Time)) {
	if g.requested {
		return
	}
	g.requested = true
	g.frames.RequestFrame(func(deadline time.Time) {
		g.requested = false
		flush(deadline)
	})
}

// Immediate runs tasks synchronously. It is the "no scheduler" strategy.
type Immediate struct{}

// Schedule implements Scheduler.
func (Immediate) Schedule(key any, task Task) func(any) {
	return func(v any) { job{key: key, task: task, value: v}.run() }
}

// Pending implements Scheduler.
func (Immediate) Pending() int { return 0 }
