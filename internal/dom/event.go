package dom

import "slices"

// Phase is the event dispatch phase.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCapture
	PhaseTarget
	PhaseBubble
)

// Event is one occasion dispatched through the tree.
type Event struct {
	Type          string
	Bubbles       bool
	Detail        any
	Target        *Node
	CurrentTarget *Node
	Phase         Phase

	stopped          bool
	immediateStopped bool
}

// NewEvent creates an event. Bubbling events propagate to ancestors after
// the target phase.
func NewEvent(typ string, bubbles bool) *Event {
	return &Event{Type: typ, Bubbles: bubbles}
}

// StopPropagation prevents the event reaching further nodes.
func (e *Event) StopPropagation() { e.stopped = true }

// StopImmediatePropagation also skips remaining listeners on the current node.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.immediateStopped = true
}

// Stopped reports whether propagation was stopped.
func (e *Event) Stopped() bool { return e.stopped }

// ImmediateStopped reports whether StopImmediatePropagation was called.
func (e *Event) ImmediateStopped() bool { return e.immediateStopped }

// Listener receives dispatched events.
type Listener func(*Event)

type listenerEntry struct {
	fn      Listener
	capture bool
	removed bool
}

// AddEventListener registers fn for events named typ and returns a function
// that removes it. Removing twice is a no-op.
func (n *Node) AddEventListener(typ string, fn Listener, capture bool) (remove func()) {
	if n.listeners == nil {
		n.listeners = make(map[string][]*listenerEntry)
	}
	entry := &listenerEntry{fn: fn, capture: capture}
	n.listeners[typ] = append(n.listeners[typ], entry)
	return func() {
		if entry.removed {
			return
		}
		entry.removed = true
		n.listeners[typ] = slices.DeleteFunc(n.listeners[typ], func(e *listenerEntry) bool { return e == entry })
		if len(n.listeners[typ]) == 0 {
			delete(n.listeners, typ)
		}
	}
}

// ClearListeners removes every listener registered on n.
func (n *Node) ClearListeners() {
	for _, entries := range n.listeners {
		for _, e := range entries {
			e.removed = true
		}
	}
	n.listeners = nil
}

// ListenerCount returns the number of listeners registered for typ on n.
func (n *Node) ListenerCount(typ string) int { return len(n.listeners[typ]) }

// Dispatch delivers ev to n's ancestors (capture), n itself (target) and,
// for bubbling events, back up the ancestors.
func (n *Node) Dispatch(ev *Event) {
	ev.Target = n
	var path []*Node
	for p := n.parent; p != nil; p = p.parent {
		path = append(path, p)
	}

	for i := len(path) - 1; i >= 0 && !ev.stopped; i-- {
		path[i].invoke(ev, PhaseCapture)
	}
	if !ev.stopped {
		n.invoke(ev, PhaseTarget)
	}
	if ev.Bubbles {
		for i := 0; i < len(path) && !ev.stopped; i++ {
			path[i].invoke(ev, PhaseBubble)
		}
	}
	ev.CurrentTarget = nil
	ev.Phase = PhaseNone
}

func (n *Node) invoke(ev *Event, phase Phase) {
	entries := slices.Clone(n.listeners[ev.Type])
	ev.CurrentTarget = n
	ev.Phase = phase
	for _, e := range entries {
		if e.removed {
			continue
		}
		if phase == PhaseCapture && !e.capture {
			continue
		}
		if phase == PhaseBubble && e.capture {
			continue
		}
		e.fn(ev)
		if ev.immediateStopped {
			return
		}
	}
}
