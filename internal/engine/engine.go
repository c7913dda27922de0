package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"

	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/registry"
	"github.com/roach88/livemark/internal/scheduler"
	"github.com/roach88/livemark/internal/sink"
	"github.com/roach88/livemark/internal/store"
)

// Engine is the binding runtime of one document.
//
// The engine observes the document's mutation records and binds every
// attached element carrying a resolve attribute: it drains the element's
// marker from the registry, wires each source binding to a listener and
// each sink binding to a subscription. Detached elements are disposed,
// which releases their subscriptions.
//
// Thread-safety model:
//   - Post(), Close(): safe from any goroutine
//   - Run() and Tick(): only from the goroutine that owns the loop; the first
//     goroutine to call either becomes the owner
//   - the document, and every stream feeding a sink, belong to the owner
//     goroutine; values produced elsewhere are handed over with Post
//   - Stats(), Orphans(): from the owner goroutine, or after Run returns
type Engine struct {
	doc      *dom.Document
	reg      *registry.Registry
	sinks    *sink.Table
	sched    scheduler.Scheduler
	settings *scheduler.Settings
	logger   *slog.Logger
	clock    scheduler.Clock
	budget   time.Duration
	onError  func(*RuntimeError)

	store    *store.Store
	sessions SessionGenerator
	session  string
	label    string
	seq      *registry.Clock
	started  bool
	ctx      context.Context

	queue   *eventQueue
	owner   atomic.Int64
	running atomic.Bool
	closing sync.Once

	arena     *arena
	handlers  map[dom.NodeID]map[string][]dom.Listener
	delegated map[string]func()
	bound     map[dom.NodeID]struct{}

	orphanAge int64
	reported  map[ir.Marker]struct{}

	stats Stats
}

// Stats summarizes an engine's activity.
type Stats struct {
	Pending       int      // markers still waiting in the registry
	Queued        int      // loop events not yet processed
	Bound         int64    // elements bound
	Disposed      int64    // bound nodes disposed
	Subscriptions int      // live subscriptions and direct listeners
	Delegated     []string // event names with a root listener, sorted
	Errors        int64    // runtime errors through the default error sink
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStore writes a trace row for every bind, dispose, error, completion,
// mount and orphan to st.
func WithStore(st *store.Store) Option {
	return func(e *Engine) { e.store = st }
}

// WithSessionGenerator sets where the trace session ID comes from.
// Defaults to UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Engine) { e.sessions = g }
}

// WithSessionLabel labels the trace session, e.g. with a scenario name.
func WithSessionLabel(label string) Option {
	return func(e *Engine) { e.label = label }
}

// WithSinks replaces the built-in sink table.
func WithSinks(t *sink.Table) Option {
	return func(e *Engine) { e.sinks = t }
}

// WithScheduler defers every sink delivery through s. Without a scheduler
// sinks run as soon as values arrive.
func WithScheduler(s scheduler.Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithStrategy builds a scheduler from s whose frames are turns of the
// engine's own loop. An invalid strategy is logged and ignored.
func WithStrategy(s scheduler.Settings) Option {
	return func(e *Engine) { e.settings = &s }
}

// WithClock sets the clock for frame deadlines. Defaults to the wall clock.
func WithClock(c scheduler.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithFrameBudget sets the time a frame gets before its deadline.
// Defaults to scheduler.DefaultFrameBudget.
func WithFrameBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// WithOrphanAge reports markers still unbound after age mutation batches
// as ORPHANED_MARKER, once each. Zero disables reporting.
func WithOrphanAge(age int64) Option {
	return func(e *Engine) { e.orphanAge = age }
}

// WithErrorHandler is called with every runtime error that reaches the
// default error sink, after it is logged and traced.
func WithErrorHandler(fn func(*RuntimeError)) Option {
	return func(e *Engine) { e.onError = fn }
}

// New creates an engine binding doc against reg and starts observing doc.
// Mutations already pending in doc are processed on the first turn.
func New(doc *dom.Document, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		doc:       doc,
		reg:       reg,
		sinks:     sink.NewTable(),
		logger:    slog.Default(),
		clock:     scheduler.SystemClock{},
		budget:    scheduler.DefaultFrameBudget,
		sessions:  UUIDv7Generator{},
		seq:       registry.NewClockAt(1),
		ctx:       context.Background(),
		queue:     newEventQueue(),
		arena:     newArena(),
		handlers:  make(map[dom.NodeID]map[string][]dom.Listener),
		delegated: make(map[string]func()),
		bound:     make(map[dom.NodeID]struct{}),
		reported:  make(map[ir.Marker]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.settings != nil && e.sched == nil {
		s, err := scheduler.New(*e.settings, e, e.clock)
		if err != nil {
			e.logger.Warn("scheduler disabled", "strategy", e.settings.Strategy, "error", err)
		} else {
			e.sched = s
		}
	}
	e.session = e.sessions.Generate()

	doc.Observe(e.notify)
	if doc.Pending() > 0 {
		e.notify()
	}
	return e
}

// Session returns the trace session ID.
func (e *Engine) Session() string { return e.session }

// Registry returns the registry the engine drains.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Document returns the observed document.
func (e *Engine) Document() *dom.Document { return e.doc }

func (e *Engine) notify() {
	e.queue.Enqueue(Event{Type: EventTypeMutations})
}

// RequestFrame implements scheduler.FrameRequester. fn runs on a later
// turn of the loop with a deadline one frame budget after that turn starts.
func (e *Engine) RequestFrame(fn func(deadline time.Time)) {
	e.queue.Enqueue(Event{Type: EventTypeFrame, Frame: fn})
}

// Post hands fn to the loop. Returns false once the engine is closed.
// Safe from any goroutine.
func (e *Engine) Post(fn func()) bool {
	return e.queue.Enqueue(Event{Type: EventTypeTask, Task: fn})
}

// Run processes loop events until ctx is cancelled or Close is called.
// It releases every subscription on return.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.claim(); err != nil {
		return err
	}
	e.running.Store(true)
	defer e.running.Store(false)
	defer e.shutdown()

	e.ctx = ctx
	e.logger.Info("engine starting", "session_id", e.session)

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.process(ev)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// Close closes the signal channel; a stale buffered signal only
			// loops back to TryDequeue.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Tick processes loop events until the queue is empty. It is the
// synchronous alternative to Run for hosts that drive their own loop.
func (e *Engine) Tick() error {
	if err := e.claim(); err != nil {
		return err
	}
	if e.queue.Closed() {
		e.shutdown()
		return nil
	}
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		e.process(ev)
	}
}

// Close stops the loop and releases every subscription. A running Run
// returns. Called from a goroutine that does not own the loop, the release
// happens on the owner's next Tick.
func (e *Engine) Close() {
	e.queue.Close()
	if e.running.Load() {
		return
	}
	if owner := e.owner.Load(); owner == 0 || owner == goid.Get() {
		e.shutdown()
	}
}

func (e *Engine) claim() error {
	id := goid.Get()
	if e.owner.CompareAndSwap(0, id) || e.owner.Load() == id {
		return nil
	}
	return &RuntimeError{
		Code:    ErrCodeWrongGoroutine,
		Message: "loop is owned by another goroutine",
		Details: map[string]string{
			"owner":  fmt.Sprint(e.owner.Load()),
			"caller": fmt.Sprint(id),
		},
	}
}

func (e *Engine) shutdown() {
	e.closing.Do(func() {
		released := e.arena.releaseAll()
		for _, name := range slices.Sorted(maps.Keys(e.delegated)) {
			e.delegated[name]()
		}
		clear(e.delegated)
		clear(e.handlers)
		e.logger.Info("engine stopped", "session_id", e.session, "released", released)
	})
}

// process routes one loop event. A panic in posted work is logged and the
// loop continues.
func (e *Engine) process(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("loop event panicked", "type", ev.Type.String(), "panic", fmt.Sprint(r))
		}
	}()

	switch ev.Type {
	case EventTypeMutations:
		e.processMutations()
	case EventTypeTask:
		if ev.Task != nil {
			ev.Task()
		}
	case EventTypeFrame:
		if ev.Frame != nil {
			ev.Frame(e.clock.Now().Add(e.budget))
		}
	default:
		e.logger.Error("unknown loop event", "type", int(ev.Type))
	}
}

// processMutations drains one batch of mutation records: removed nodes are
// disposed, then added nodes are bound, record by record.
func (e *Engine) processMutations() {
	recs := e.doc.TakeRecords()
	if len(recs) == 0 {
		return
	}
	e.reg.Advance()
	for _, r := range recs {
		for _, n := range r.Removed {
			e.detach(n)
		}
		for _, n := range r.Added {
			e.attach(n)
		}
	}
	e.reportOrphans()
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Pending = e.reg.Len()
	s.Queued = e.queue.Len()
	s.Subscriptions = e.arena.len()
	s.Delegated = slices.Sorted(maps.Keys(e.delegated))
	return s
}

// Orphans returns markers that have stayed unbound for at least age
// mutation batches.
func (e *Engine) Orphans(age int64) []ir.Marker {
	return e.reg.Stale(age)
}

func (e *Engine) reportOrphans() {
	if e.orphanAge <= 0 {
		return
	}
	for _, m := range e.reg.Stale(e.orphanAge) {
		if _, ok := e.reported[m]; ok {
			continue
		}
		e.reported[m] = struct{}{}
		e.trace(store.KindOrphan, m, 0, map[string]any{"age": e.orphanAge})
		e.report(&RuntimeError{
			Code:    ErrCodeOrphanedMarker,
			Message: fmt.Sprintf("marker unbound after %d mutation batches", e.orphanAge),
			Marker:  m,
		})
	}
}

// report is the default error sink.
func (e *Engine) report(re *RuntimeError) {
	e.stats.Errors++
	e.logger.Warn("binding degraded",
		"code", string(re.Code),
		"marker", string(re.Marker),
		"node_id", uint64(re.NodeID),
		"error", re.Error(),
	)
	detail := map[string]any{"code": string(re.Code), "message": re.Message}
	for k, v := range re.Details {
		detail[k] = v
	}
	e.trace(store.KindError, re.Marker, re.NodeID, detail)
	if e.onError != nil {
		e.onError(re)
	}
}

// trace writes one row to the trace store, if any. Failures are logged and
// otherwise ignored.
func (e *Engine) trace(kind string, m ir.Marker, node dom.NodeID, detail map[string]any) {
	if e.store == nil {
		return
	}
	if !e.started {
		sess := store.Session{ID: e.session, Label: e.label, StartedSeq: e.seq.Current()}
		if err := e.store.WriteSession(e.ctx, sess); err != nil {
			e.logger.Error("trace write failed", "session_id", e.session, "error", err)
			return
		}
		e.started = true
	}
	ev := store.Event{
		SessionID: e.session,
		Seq:       e.seq.Next(),
		Kind:      kind,
		Marker:    string(m),
		NodeID:    uint64(node),
		Detail:    detail,
	}
	if err := e.store.WriteEvent(e.ctx, ev); err != nil {
		e.logger.Error("trace write failed", "session_id", e.session, "kind", kind, "error", err)
	}
}
