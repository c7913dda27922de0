package engine

import (
	"sync"
	"time"
)

// EventType distinguishes loop events.
type EventType int

const (
	// EventTypeMutations asks the loop to drain pending document mutation
	// records.
	EventTypeMutations EventType = iota + 1
	// EventTypeTask runs a posted function.
	EventTypeTask
	// EventTypeFrame runs a scheduler frame callback.
	EventTypeFrame
)

func (t EventType) String() string {
	switch t {
	case EventTypeMutations:
		return "mutations"
	case EventTypeTask:
		return "task"
	case EventTypeFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Event is one unit of loop work.
type Event struct {
	Type  EventType
	Task  func()
	Frame func(deadline time.Time)
}

// eventQueue is a thread-safe unbounded FIFO.
//
// Any goroutine may enqueue; only the loop dequeues. The buffered signal
// channel lets the loop wait on the queue and its context together.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds e to the back of the queue. Returns false once closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Drop the slot's closures so the backing array does not retain them.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available. It is
// closed by Close.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close refuses further events and wakes the waiting loop.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
