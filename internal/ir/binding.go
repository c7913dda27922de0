package ir

import (
	"fmt"

	"github.com/roach88/livemark/internal/dom"
)

// Marker is the opaque token linking emitted markup to pending bindings.
type Marker string

// DefaultMarkerPrefix prefixes every minted marker.
const DefaultMarkerPrefix = "lm+"

// ResolveAttr is the attribute carrying an element's marker.
const ResolveAttr = "resolve"

// Boundary code points wrapping an interactive text slot in emitted markup.
const (
	TextOpen  = "\u0002"
	TextClose = "\u0003"
)

// Sink tags understood by the compiler. Any other registered tag can be
// named through a Hint.
const (
	SinkAttribute   = "attribute"
	SinkClass       = "class"
	SinkStyle       = "style"
	SinkValue       = "value"
	SinkDataset     = "dataset"
	SinkMixin       = "mixin"
	SinkInnerHTML   = "innerHTML"
	SinkTextContent = "textContent"
	SinkText        = "text"
	SinkRemove      = "remove"
)

// MountEvent is the synthetic occasion dispatched after an element with a
// mount source is bound.
const MountEvent = "mount"

// Binding is one pending wiring instruction for a marker.
type Binding interface {
	// Describe returns a short stable label, e.g. "sink:class" or "source:click".
	Describe() string
	binding()
}

// SourceBinding wires a DOM event on the bound element to Listener.
type SourceBinding struct {
	Event    string
	Listener dom.Listener
	// Direct attaches a capturing listener on the element instead of using
	// the delegated root listener. Set for non-bubbling events.
	Direct bool
}

// SinkBinding feeds values of Source into the sink registered as Sink.
type SinkBinding struct {
	Sink   string
	Source Expr
	Params any

	// SkipFirst drops the first delivery if it equals Rendered. The
	// compiler sets both when a stateful source's current value was already
	// rendered into markup.
	SkipFirst bool
	Rendered  any
	// TextSlot targets the next split text node of the element instead of
	// the element itself.
	TextSlot bool

	OnError    func(error)
	OnComplete func()
}

func (SourceBinding) binding() {}
func (SinkBinding) binding()   {}

func (b SourceBinding) Describe() string {
	if b.Direct {
		return fmt.Sprintf("source:%s:direct", b.Event)
	}
	return "source:" + b.Event
}

func (b SinkBinding) Describe() string {
	if b.Params != nil {
		return fmt.Sprintf("sink:%s(%v):%s", b.Sink, b.Params, b.Source.Kind())
	}
	return fmt.Sprintf("sink:%s:%s", b.Sink, b.Source.Kind())
}
