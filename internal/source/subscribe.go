package source

import (
	"reflect"

	"github.com/roach88/livemark/internal/ir"
)

// Handlers receive the values, error and completion of a wired source.
type Handlers struct {
	Next     func(any)
	Error    func(error)
	Complete func()

	// SkipFirst drops the first value when it equals Rendered. Used when
	// the current value of a stateful stream was already rendered into
	// markup; a value that changed in between is still delivered.
	SkipFirst bool
	Rendered  any
}

// Subscribe wires e into h and returns the handle that cancels it.
//
//   - streams subscribe with (Next, Error, Complete) and return their
//     subscription
//   - thenables call Next on resolution and Error on rejection; they cannot be
//     cancelled, so the returned subscription is nil
//   - plain values and objects call Next once, synchronously
//   - hints wire their inner source
//
// ok is false when e cannot produce values (functions, observers, handlers,
// key paths, empty); nothing is called in that case.
func Subscribe(e ir.Expr, h Handlers) (sub ir.Subscription, ok bool) {
	next := h.Next
	if next == nil {
		next = func(any) {}
	}
	if h.SkipFirst {
		next = skipFirst(next, h.Rendered)
	}
	fail := h.Error
	if fail == nil {
		fail = func(error) {}
	}
	done := h.Complete
	if done == nil {
		done = func() {}
	}

	switch x := e.(type) {
	case ir.StreamExpr:
		return x.Stream.Subscribe(next, fail, done), true
	case ir.ThenableExpr:
		x.Thenable.Then(next, fail)
		return nil, true
	case ir.Object:
		next(x.Fields)
		return nil, true
	case ir.Plain:
		next(x.Value)
		return nil, true
	case ir.Hint:
		h.Next, h.Error, h.Complete, h.SkipFirst = next, fail, done, false
		return Subscribe(ir.Classify(x.Source), h)
	default:
		return nil, false
	}
}

func skipFirst(next func(any), rendered any) func(any) {
	first := true
	return func(v any) {
		if first {
			first = false
			if reflect.DeepEqual(v, rendered) {
				return
			}
		}
		next(v)
	}
}
