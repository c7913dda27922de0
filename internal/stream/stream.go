// Package stream is a minimal push-stream library satisfying the ir
// contracts: Subject (hot stream + observer), State (stream with a current
// value) and Future (settles once).
//
// The engine only depends on the ir interfaces; any stream library exposing
// Subscribe or Then works the same way. This one backs the tests, the
// scenario harness and CLI fixtures.
//
// Delivery is synchronous on the caller's goroutine. Values produced off the
// engine's loop goroutine should be handed over with engine.Post.
package stream

import (
	"sync"

	"github.com/roach88/livemark/internal/ir"
)

type observer struct {
	next func(any)
	fail func(error)
	done func()
}

// Subject broadcasts values to every current subscriber.
type Subject struct {
	mu     sync.Mutex
	subs   map[int]*observer
	nextID int
	closed bool
	err    error
}

// NewSubject creates an open subject.
func NewSubject() *Subject {
	return &Subject{subs: make(map[int]*observer)}
}

// Subscribe implements ir.Stream. Subscribing to a closed subject replays
// the terminal error or completion immediately.
func (s *Subject) Subscribe(next func(any), fail func(error), done func()) ir.Subscription {
	s.mu.Lock()
	if s.closed {
		err := s.err
		s.mu.Unlock()
		if err != nil && fail != nil {
			fail(err)
		} else if err == nil && done != nil {
			done()
		}
		return noop{}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = &observer{next: next, fail: fail, done: done}
	s.mu.Unlock()

	return &subscription{cancel: func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}}
}

// Next implements ir.Observer and delivers v to every subscriber.
func (s *Subject) Next(v any) {
	for _, o := range s.snapshot(false, nil) {
		if o.next != nil {
			o.next(v)
		}
	}
}

// Error terminates the subject with err.
func (s *Subject) Error(err error) {
	for _, o := range s.snapshot(true, err) {
		if o.fail != nil {
			o.fail(err)
		}
	}
}

// Complete terminates the subject normally.
func (s *Subject) Complete() {
	for _, o := range s.snapshot(true, nil) {
		if o.done != nil {
			o.done()
		}
	}
}

// Observers returns the number of live subscriptions.
func (s *Subject) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// snapshot copies subscribers in subscription order. A terminal snapshot
// closes the subject and drops all subscribers.
func (s *Subject) snapshot(terminal bool, err error) []*observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	out := make([]*observer, 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if o, ok := s.subs[id]; ok {
			out = append(out, o)
		}
	}
	if terminal {
		s.closed = true
		s.err = err
		s.subs = make(map[int]*observer)
	}
	return out
}

// State is a Subject that holds a current value and replays it to new
// subscribers.
type State struct {
	*Subject

	mu    sync.Mutex
	value any
}

// NewState creates a state stream holding initial.
func NewState(initial any) *State {
	return &State{Subject: NewSubject(), value: initial}
}

// Current implements ir.Stateful.
func (s *State) Current() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, true
}

// Subscribe delivers the current value first, then live updates.
func (s *State) Subscribe(next func(any), fail func(error), done func()) ir.Subscription {
	cur, _ := s.Current()
	if next != nil {
		next(cur)
	}
	return s.Subject.Subscribe(next, fail, done)
}

// Next stores v as the current value and broadcasts it.
func (s *State) Next(v any) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	s.Subject.Next(v)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.cancel) }

type noop struct{}

func (noop) Unsubscribe() {}
