// Package source turns classified expressions into the two uniform shapes
// the binding engine wires: listeners (DOM occasion in, side effect out)
// and subscriptions (values out of a stream, future or plain value into a
// sink function).
package source

import (
	"strconv"
	"time"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
)

// Normalize converts an expression into a single-argument listener.
//
// Functions are used as-is, observers and event-handler objects are bound to
// their delivery method, and KeyPath pairs read the triggering element's
// value into their container. A subject that is both a stream and an
// observer is fed through its observer side.
//
// Normalize returns nil for anything else; callers treat nil as "no source".
func Normalize(v any) dom.Listener {
	switch e := ir.Classify(v).(type) {
	case ir.Func:
		return e.Fn
	case ir.ObserverExpr:
		return func(ev *dom.Event) { e.Observer.Next(ev) }
	case ir.HandlerExpr:
		return e.Handler.HandleEvent
	case ir.KeyPath:
		if e.Container == nil {
			return nil
		}
		return func(ev *dom.Event) {
			e.Container.Assign(e.Key, ReadValue(eventNode(ev)))
		}
	case ir.StreamExpr:
		if o, ok := e.Stream.(ir.Observer); ok {
			return func(ev *dom.Event) { o.Next(ev) }
		}
		return nil
	case ir.Hint:
		return Normalize(e.Source)
	default:
		return nil
	}
}

func eventNode(ev *dom.Event) *dom.Node {
	if ev == nil {
		return nil
	}
	if ev.CurrentTarget != nil {
		return ev.CurrentTarget
	}
	return ev.Target
}

// DateLayout is the wire format of date inputs.
const DateLayout = "2006-01-02"

// ReadValue auto-detects the value an element holds: checkboxes yield bool,
// number and range inputs yield float64, date inputs yield time.Time, form
// controls yield their string value and anything else its text content.
// Unparseable numbers and dates fall back to the raw string.
func ReadValue(n *dom.Node) any {
	if n == nil {
		return nil
	}
	if !n.IsElement() {
		return n.TextContent()
	}
	typ, _ := n.Attr("type")
	switch n.Tag() {
	case "input":
		switch typ {
		case "checkbox":
			return n.Checked()
		case "number", "range":
			if f, err := strconv.ParseFloat(n.Value(), 64); err == nil {
				return f
			}
			return n.Value()
		case "date":
			if d, err := time.Parse(DateLayout, n.Value()); err == nil {
				return d
			}
			return n.Value()
		default:
			return n.Value()
		}
	case "select", "textarea":
		return n.Value()
	default:
		return n.TextContent()
	}
}
