package stream

import "sync"

// Future settles exactly once with a value or an error.
// Callbacks registered after settlement run immediately.
type Future struct {
	mu      sync.Mutex
	settled bool
	value   any
	err     error
	waiters []waiter
}

type waiter struct {
	resolve func(any)
	reject  func(error)
}

// NewFuture creates a pending future.
func NewFuture() *Future {
	return &Future{}
}

// Resolved creates a future already settled with v.
func Resolved(v any) *Future {
	f := NewFuture()
	f.Resolve(v)
	return f
}

// Then implements ir.Thenable.
func (f *Future) Then(resolve func(any), reject func(error)) {
	f.mu.Lock()
	if !f.settled {
		f.waiters = append(f.waiters, waiter{resolve: resolve, reject: reject})
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	settle(waiter{resolve: resolve, reject: reject}, v, err)
}

// Resolve settles the future with v. Later calls are ignored.
func (f *Future) Resolve(v any) { f.settle(v, nil) }

// Reject settles the future with err. Later calls are ignored.
func (f *Future) Reject(err error) { f.settle(nil, err) }

// Settled reports whether the future has settled.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

func (f *Future) settle(v any, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled, f.value, f.err = true, v, err
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, w := range waiters {
		settle(w, v, err)
	}
}

func settle(w waiter, v any, err error) {
	if err != nil {
		if w.reject != nil {
			w.reject(err)
		}
		return
	}
	if w.resolve != nil {
		w.resolve(v)
	}
}
