package engine

import (
	"slices"
	"strings"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/scheduler"
	"github.com/roach88/livemark/internal/sink"
	"github.com/roach88/livemark/internal/source"
	"github.com/roach88/livemark/internal/store"
)

// attach binds n and every descendant still carrying a resolve attribute.
// Nodes detached again before the batch was processed are skipped; their
// markers stay in the registry and surface as orphans.
func (e *Engine) attach(n *dom.Node) {
	if !n.IsElement() || !n.IsConnected() {
		return
	}
	var pending []*dom.Node
	if unbound(n) {
		pending = append(pending, n)
	}
	for d := range n.Descendants() {
		if unbound(d) {
			pending = append(pending, d)
		}
	}
	for _, el := range pending {
		// An earlier binding in this pass may have replaced el.
		if unbound(el) && el.IsConnected() {
			e.bind(el)
		}
	}
}

func unbound(n *dom.Node) bool {
	return n.IsElement() && !n.Disposed() && n.HasAttr(ir.ResolveAttr)
}

// detach disposes n unless it was moved rather than removed.
func (e *Engine) detach(n *dom.Node) {
	if n.IsConnected() {
		return
	}
	e.dispose(n)
}

// bind moves el from Unbound to Bound.
func (e *Engine) bind(el *dom.Node) {
	value, _ := el.Attr(ir.ResolveAttr)
	m := ir.Marker(value)
	el.RemoveAttr(ir.ResolveAttr)

	bindings := e.reg.Drain(m)
	if len(bindings) == 0 {
		e.report(&RuntimeError{
			Code:    ErrCodeUnknownMarker,
			Message: "no pending bindings for marker",
			Marker:  m,
			NodeID:  el.ID(),
		})
		return
	}

	stripEventAttrs(el, m)
	slots := splitTextSlots(el)
	e.bound[el.ID()] = struct{}{}
	e.stats.Bound++

	mounted := false
	for _, b := range bindings {
		switch b := b.(type) {
		case ir.SourceBinding:
			e.bindSource(el, m, b)
			if b.Event == ir.MountEvent && !mounted {
				mounted = true
				e.scheduleMount(el, m)
			}
		case ir.SinkBinding:
			target := el
			if b.TextSlot {
				if len(slots) == 0 {
					e.report(&RuntimeError{
						Code:    ErrCodeUnresolvableSource,
						Message: "text slot not found in element",
						Marker:  m,
						NodeID:  el.ID(),
						Details: map[string]string{"sink": b.Sink},
					})
					continue
				}
				target, slots = slots[0], slots[1:]
			}
			e.bindSink(target, m, b)
		}
	}

	e.logger.Debug("element bound", "marker", string(m), "node_id", uint64(el.ID()), "tag", el.Tag(), "bindings", len(bindings))
	e.trace(store.KindBind, m, el.ID(), map[string]any{"tag": el.Tag(), "bindings": describe(bindings)})
}

func describe(bindings []ir.Binding) []any {
	out := make([]any, len(bindings))
	for i, b := range bindings {
		out[i] = b.Describe()
	}
	return out
}

// stripEventAttrs removes on* attributes that only carry the marker.
func stripEventAttrs(el *dom.Node, m ir.Marker) {
	for _, a := range el.Attrs() {
		if strings.HasPrefix(a.Name, "on") && a.Value == string(m) {
			el.RemoveAttr(a.Name)
		}
	}
}

// splitTextSlots splits every boundary-wrapped slot in el's text children
// into a static prefix, a dedicated text node and a static suffix. The
// dedicated nodes are returned in document order.
func splitTextSlots(el *dom.Node) []*dom.Node {
	var slots []*dom.Node
	for _, c := range el.Children() {
		node := c
		for node.IsText() {
			data := node.Data()
			open := strings.Index(data, ir.TextOpen)
			if open < 0 {
				break
			}
			width := strings.Index(data[open:], ir.TextClose)
			if width < 0 {
				break
			}
			slot := node.SplitText(open)
			rest := slot.SplitText(width + len(ir.TextClose))
			slot.SetData(data[open+len(ir.TextOpen) : open+width])
			slots = append(slots, slot)
			node = rest
		}
	}
	return slots
}

// bindSource wires a listener, directly for non-bubbling events and through
// the delegated root listener otherwise.
func (e *Engine) bindSource(el *dom.Node, m ir.Marker, b ir.SourceBinding) {
	if b.Listener == nil {
		e.report(&RuntimeError{
			Code:    ErrCodeUnresolvableSource,
			Message: "source binding without listener",
			Marker:  m,
			NodeID:  el.ID(),
			Details: map[string]string{"event": b.Event},
		})
		return
	}
	if b.Direct {
		remove := el.AddEventListener(b.Event, b.Listener, true)
		e.arena.add(el.ID(), m, unsubscribeFunc(remove))
		return
	}
	e.delegate(b.Event)
	hs := e.handlers[el.ID()]
	if hs == nil {
		hs = make(map[string][]dom.Listener)
		e.handlers[el.ID()] = hs
	}
	hs[b.Event] = append(hs[b.Event], b.Listener)
}

// delegate installs the root listener for event once.
func (e *Engine) delegate(event string) {
	if _, ok := e.delegated[event]; ok {
		return
	}
	e.delegated[event] = e.doc.Root().AddEventListener(event, func(ev *dom.Event) {
		e.dispatch(event, ev)
	}, false)
	e.logger.Debug("delegated listener installed", "event", event)
}

// dispatch walks from the event target up to the root, calling the
// handlers registered for each bound node on the way.
func (e *Engine) dispatch(event string, ev *dom.Event) {
	root := ev.CurrentTarget
	for n := ev.Target; n != nil && !ev.Stopped(); n = n.Parent() {
		hs := e.handlers[n.ID()][event]
		if len(hs) == 0 {
			continue
		}
		ev.CurrentTarget = n
		for _, h := range slices.Clone(hs) {
			h(ev)
			if ev.ImmediateStopped() {
				break
			}
		}
	}
	ev.CurrentTarget = root
}

// scheduleMount dispatches a bubbling mount event on a later turn, once el
// has finished attaching.
func (e *Engine) scheduleMount(el *dom.Node, m ir.Marker) {
	e.Post(func() {
		if el.Disposed() || !el.IsConnected() {
			return
		}
		el.Dispatch(dom.NewEvent(ir.MountEvent, true))
		e.trace(store.KindMount, m, el.ID(), nil)
	})
}

// bindSink subscribes the sink built for target to the binding's source.
func (e *Engine) bindSink(target *dom.Node, m ir.Marker, b ir.SinkBinding) {
	if !e.sinks.Has(b.Sink) {
		e.logger.Debug("no sink registered, using attribute fallback", "sink", b.Sink, "marker", string(m))
	}
	deliver := e.guard(target, m, b, e.sinks.Lookup(b.Sink)(target, b.Params))
	if e.sched != nil {
		deliver = e.sched.Schedule(&slotKey{node: target}, scheduler.Task(deliver))
	}

	fail := b.OnError
	if fail == nil {
		fail = func(err error) {
			e.report(&RuntimeError{
				Code:    ErrCodeStreamError,
				Message: "source reported an error",
				Marker:  m,
				NodeID:  target.ID(),
				Details: map[string]string{"sink": b.Sink},
				Err:     err,
			})
		}
	}
	done := b.OnComplete
	if done == nil {
		done = func() {
			e.logger.Debug("source completed", "marker", string(m), "node_id", uint64(target.ID()), "sink", b.Sink)
			e.trace(store.KindComplete, m, target.ID(), map[string]any{"sink": b.Sink})
		}
	}

	sub, ok := source.Subscribe(b.Source, source.Handlers{
		Next:      deliver,
		Error:     fail,
		Complete:  done,
		SkipFirst: b.SkipFirst,
		Rendered:  b.Rendered,
	})
	if !ok {
		e.report(&RuntimeError{
			Code:    ErrCodeUnresolvableSource,
			Message: "source produces no values",
			Marker:  m,
			NodeID:  target.ID(),
			Details: map[string]string{"sink": b.Sink, "kind": b.Source.Kind().String()},
		})
		return
	}
	if sub != nil {
		e.arena.add(target.ID(), m, sub)
	}
}

// slotKey identifies one sink binding to the scheduler. Debouncing
// supersedes values per binding, so two sinks on one element never replace
// each other's deliveries. It is disposed with its node.
type slotKey struct {
	node *dom.Node
}

func (k *slotKey) Disposed() bool { return k.node.Disposed() }

// guard recovers a panicking sink and routes it as SINK_ERROR.
func (e *Engine) guard(target *dom.Node, m ir.Marker, b ir.SinkBinding, fn sink.Func) func(any) {
	return func(v any) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			re := &RuntimeError{
				Code:    ErrCodeSinkError,
				Message: "sink failed to write value",
				Marker:  m,
				NodeID:  target.ID(),
				Details: map[string]string{"sink": b.Sink},
				Err:     &SinkPanicError{Value: r},
			}
			if b.OnError != nil {
				b.OnError(re)
				return
			}
			e.report(re)
		}()
		fn(v)
	}
}

// dispose moves n and its subtree to Disposed, children first. Elements
// that never got bound keep their resolve attribute and stay bindable.
func (e *Engine) dispose(n *dom.Node) {
	for _, c := range n.Children() {
		e.dispose(c)
	}
	if unbound(n) || n.Disposed() {
		return
	}
	n.MarkDisposed()

	released := e.arena.release(n.ID())
	delete(e.handlers, n.ID())
	if _, ok := e.bound[n.ID()]; !ok && released == 0 {
		return
	}
	delete(e.bound, n.ID())
	n.ClearListeners()
	e.stats.Disposed++

	e.logger.Debug("node disposed", "node_id", uint64(n.ID()), "released", released)
	e.trace(store.KindDispose, "", n.ID(), map[string]any{"released": released})
}
