package ir

import (
	"fmt"
	"strings"

	"github.com/roach88/livemark/internal/dom"
)

// Kind identifies an Expr variant.
type Kind int

const (
	KindEmpty Kind = iota
	KindPlain
	KindFunc
	KindObserver
	KindHandler
	KindKeyPath
	KindStream
	KindThenable
	KindObject
	KindHint
)

var kindNames = [...]string{
	KindEmpty:    "empty",
	KindPlain:    "plain",
	KindFunc:     "func",
	KindObserver: "observer",
	KindHandler:  "handler",
	KindKeyPath:  "keypath",
	KindStream:   "stream",
	KindThenable: "thenable",
	KindObject:   "object",
	KindHint:     "hint",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Subscription cancels a stream subscription. Unsubscribe must be idempotent.
type Subscription interface {
	Unsubscribe()
}

// Stream delivers zero or more values, then optionally an error or completion.
type Stream interface {
	Subscribe(next func(any), fail func(error), done func()) Subscription
}

// Stateful is a Stream that always holds a current value and replays it to
// each new subscriber.
type Stateful interface {
	Stream
	Current() (any, bool)
}

// Thenable settles once, with a value or an error. It cannot be cancelled.
type Thenable interface {
	Then(resolve func(any), reject func(error))
}

// Observer accepts pushed values.
type Observer interface {
	Next(any)
}

// EventHandler is a listener object.
type EventHandler interface {
	HandleEvent(*dom.Event)
}

// Container receives values written by a KeyPath source.
type Container interface {
	Assign(key string, value any)
}

// Map is a Container backed by a plain map.
type Map map[string]any

// Assign implements Container.
func (m Map) Assign(key string, value any) { m[key] = value }

// Attrs is a flat attribute object, used for mixins and class/style objects.
type Attrs map[string]any

// Expr is a classified template expression.
type Expr interface {
	Kind() Kind
	// Raw returns the value the expression was classified from.
	Raw() any
	expr()
}

// Empty is a nil expression.
type Empty struct{}

// Plain is a value concatenated into markup as-is.
type Plain struct{ Value any }

// Func is a plain event listener.
type Func struct{ Fn dom.Listener }

// ObserverExpr wraps an Observer.
type ObserverExpr struct{ Observer Observer }

// HandlerExpr wraps an EventHandler.
type HandlerExpr struct{ Handler EventHandler }

// KeyPath writes a value read from the triggering element into
// Container[Key]. Construct it with Bind.
type KeyPath struct {
	Container Container
	Key       string
}

// StreamExpr wraps a Stream. Stateful is set when the stream carries a
// current value.
type StreamExpr struct {
	Stream   Stream
	Stateful bool
}

// ThenableExpr wraps a Thenable.
type ThenableExpr struct{ Thenable Thenable }

// Object is a flat key/value object.
type Object struct{ Fields map[string]any }

// Hint names the sink an expression should feed. Source is classified
// when the hint is.
type Hint struct {
	Sink   string
	Source any
	Params any
}

func (Empty) Kind() Kind        { return KindEmpty }
func (Plain) Kind() Kind        { return KindPlain }
func (Func) Kind() Kind         { return KindFunc }
func (ObserverExpr) Kind() Kind { return KindObserver }
func (HandlerExpr) Kind() Kind  { return KindHandler }
func (KeyPath) Kind() Kind      { return KindKeyPath }
func (StreamExpr) Kind() Kind   { return KindStream }
func (ThenableExpr) Kind() Kind { return KindThenable }
func (Object) Kind() Kind       { return KindObject }
func (Hint) Kind() Kind         { return KindHint }

func (Empty) Raw() any          { return nil }
func (e Plain) Raw() any        { return e.Value }
func (e Func) Raw() any         { return e.Fn }
func (e ObserverExpr) Raw() any { return e.Observer }
func (e HandlerExpr) Raw() any  { return e.Handler }
func (e KeyPath) Raw() any      { return e }
func (e StreamExpr) Raw() any   { return e.Stream }
func (e ThenableExpr) Raw() any { return e.Thenable }
func (e Object) Raw() any       { return e.Fields }
func (e Hint) Raw() any         { return e }

func (Empty) expr()        {}
func (Plain) expr()        {}
func (Func) expr()         {}
func (ObserverExpr) expr() {}
func (HandlerExpr) expr()  {}
func (KeyPath) expr()      {}
func (StreamExpr) expr()   {}
func (ThenableExpr) expr() {}
func (Object) expr()       {}
func (Hint) expr()         {}

// Bind builds a KeyPath expression writing into container[key].
func Bind(container Container, key string) KeyPath {
	return KeyPath{Container: container, Key: key}
}

// WithSink builds a Hint routing source into the named sink.
func WithSink(sink string, source any) Hint {
	return Hint{Sink: sink, Source: source}
}

// Classify maps an arbitrary value onto its Expr variant.
//
// Precedence matters for values with several capabilities: a subject that
// is both a Stream and an Observer classifies as a Stream, and event
// contexts fall back to its Observer side (see source.Normalize).
func Classify(v any) Expr {
	switch x := v.(type) {
	case nil:
		return Empty{}
	case Expr:
		return x
	case dom.Listener:
		if x == nil {
			return Empty{}
		}
		return Func{Fn: x}
	case func(*dom.Event):
		if x == nil {
			return Empty{}
		}
		return Func{Fn: x}
	case func():
		if x == nil {
			return Empty{}
		}
		return Func{Fn: func(*dom.Event) { x() }}
	case Stateful:
		return StreamExpr{Stream: x, Stateful: true}
	case Stream:
		return StreamExpr{Stream: x}
	case Thenable:
		return ThenableExpr{Thenable: x}
	case Observer:
		return ObserverExpr{Observer: x}
	case EventHandler:
		return HandlerExpr{Handler: x}
	case Attrs:
		return Object{Fields: x}
	case Map:
		return Object{Fields: x}
	case map[string]any:
		return Object{Fields: x}
	default:
		return Plain{Value: v}
	}
}

// IsLive reports whether e needs a sink binding rather than literal
// concatenation.
func IsLive(e Expr) bool {
	switch e.Kind() {
	case KindStream, KindThenable, KindObject, KindHint:
		return true
	default:
		return false
	}
}

// Current returns the value a Stateful stream holds right now, looking
// through hints.
func Current(e Expr) (any, bool) {
	if h, ok := e.(Hint); ok {
		e = Classify(h.Source)
	}
	s, ok := e.(StreamExpr)
	if !ok || !s.Stateful {
		return nil, false
	}
	return s.Stream.(Stateful).Current()
}

// Stringify renders a delivered value as markup text. Slices are joined
// without separators; nil renders empty.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []string:
		return strings.Join(x, "")
	case []any:
		var b strings.Builder
		for _, el := range x {
			b.WriteString(Stringify(el))
		}
		return b.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
