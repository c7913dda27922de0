// Package registry holds pending binding configurations keyed by marker.
//
// Lifecycle: empty at cold start, grows while templates are compiled,
// shrinks while the binding engine drains markers of newly attached
// elements. Entries that never get drained are leaks; Stale and Stats make
// them observable.
package registry

import (
	"slices"
	"strconv"
	"sync"

	"github.com/roach88/livemark/internal/ir"
)

type entry struct {
	seq      int64
	gen      int64
	bindings []ir.Binding
}

// Registry maps markers to the bindings waiting for them.
//
// All methods are safe for concurrent use, though the engine only touches a
// registry from its event loop.
type Registry struct {
	prefix string
	clock  *Clock

	mu      sync.Mutex
	entries map[ir.Marker]*entry
	gen     int64
	added   int64
	drained int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock mints markers from c instead of the process-wide clock.
// Markers are then only unique among registries sharing c.
func WithClock(c *Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithPrefix overrides ir.DefaultMarkerPrefix.
func WithPrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		prefix:  ir.DefaultMarkerPrefix,
		clock:   processClock,
		entries: make(map[ir.Marker]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mint returns a fresh marker: the prefix followed by a decimal counter.
func (r *Registry) Mint() ir.Marker {
	return ir.Marker(r.prefix + strconv.FormatInt(r.clock.Next(), 10))
}

// Add appends b to the bindings pending for m.
func (r *Registry) Add(m ir.Marker, b ir.Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[m]
	if !ok {
		e = &entry{seq: r.added, gen: r.gen}
		r.entries[m] = e
	}
	e.bindings = append(e.bindings, b)
	r.added++
}

// Drain returns every binding pending for m, in registration order, and
// removes them. Draining an unknown or already drained marker returns nil.
func (r *Registry) Drain(m ir.Marker) []ir.Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[m]
	if !ok {
		return nil
	}
	delete(r.entries, m)
	r.drained += int64(len(e.bindings))
	return e.bindings
}

// Has reports whether m has pending bindings.
func (r *Registry) Has(m ir.Marker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[m]
	return ok
}

// Clear drops every pending entry and returns how many markers were dropped.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[ir.Marker]*entry)
	return n
}

// Len returns the number of markers with pending bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Markers returns the pending markers in the order they were first added.
func (r *Registry) Markers() []ir.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(func(*entry) bool { return true })
}

// Advance starts a new generation. The engine calls it once per processed
// mutation batch so Stale can measure how long entries have waited.
func (r *Registry) Advance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
}

// Stale returns markers that have waited at least age generations.
func (r *Registry) Stale(age int64) []ir.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(func(e *entry) bool { return r.gen-e.gen >= age })
}

func (r *Registry) sortedLocked(keep func(*entry) bool) []ir.Marker {
	out := make([]ir.Marker, 0, len(r.entries))
	for m, e := range r.entries {
		if keep(e) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b ir.Marker) int {
		return int(r.entries[a].seq - r.entries[b].seq)
	})
	return out
}

// Stats summarizes registry traffic.
type Stats struct {
	Pending int   // markers waiting to be drained
	Added   int64 // bindings ever added
	Drained int64 // bindings ever drained
}

// Stats returns current counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Pending: len(r.entries), Added: r.added, Drained: r.drained}
}

// Snapshot describes pending bindings per marker, for diagnostics and
// golden files.
func (r *Registry) Snapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.entries))
	for m, e := range r.entries {
		descs := make([]any, len(e.bindings))
		for i, b := range e.bindings {
			descs[i] = b.Describe()
		}
		out[string(m)] = descs
	}
	return out
}
