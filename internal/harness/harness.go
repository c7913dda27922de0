package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/livemark/internal/compiler"
	"github.com/roach88/livemark/internal/dom"
	"github.com/roach88/livemark/internal/engine"
	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/registry"
	"github.com/roach88/livemark/internal/scheduler"
	"github.com/roach88/livemark/internal/store"
	"github.com/roach88/livemark/internal/stream"
	"github.com/roach88/livemark/internal/testutil"
)

// Harness runs one scenario against a live engine.
type Harness struct {
	store  *store.Store
	doc    *dom.Document
	host   *dom.Node
	comp   *compiler.Compiler
	engine *engine.Engine

	values   map[string]any
	states   map[string]*stream.State
	subjects map[string]*stream.Subject
	futures  map[string]*stream.Future
	model    ir.Map
	result   *Result
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	database    string
	sessions    engine.SessionGenerator
	prefix      string
	nonBubbling []string
	scheduler   *scheduler.Settings
}

func newOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler), database: ":memory:"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger routes engine and compiler logs to l. Logs are discarded by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDatabase writes the trace to the SQLite database at path instead of
// a private in-memory one.
func WithDatabase(path string) Option {
	return func(o *options) { o.database = path }
}

// WithSessionGenerator draws the trace session ID from g unless the
// scenario fixes one. Runs sharing a database need distinct sessions.
func WithSessionGenerator(g engine.SessionGenerator) Option {
	return func(o *options) { o.sessions = g }
}

// WithMarkerPrefix mints markers with prefix instead of the default.
func WithMarkerPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithNonBubbling replaces the events that get direct listeners.
func WithNonBubbling(events []string) Option {
	return func(o *options) { o.nonBubbling = events }
}

// WithScheduler schedules sink deliveries with s for scenarios that do not
// name a strategy themselves.
func WithScheduler(s scheduler.Settings) Option {
	return func(o *options) { o.scheduler = &s }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed session ID
// and a registry clock starting at zero, so repeated runs produce identical
// markers and traces.
//
// Execution flow:
//  1. Build fixtures and compile the template
//  2. Mount the markup under a <main> host and let the engine bind it
//  3. Execute steps, one engine turn after each
//  4. Read the trace back from the store and evaluate expectations
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := newOptions(opts)
	var sessions engine.SessionGenerator = testutil.NewFixedSessionGenerator(scenario.Session)
	if o.sessions != nil && scenario.Session == "" {
		sessions = o.sessions
	}

	st, err := store.Open(o.database)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace store: %w", err)
	}
	defer st.Close()

	reg := o.registry()
	h := newHarness(reg, o)
	h.store = st

	engineOpts := []engine.Option{
		engine.WithLogger(o.logger),
		engine.WithStore(st),
		engine.WithSessionGenerator(sessions),
		engine.WithSessionLabel(scenario.Name),
		engine.WithOrphanAge(scenario.OrphanAge),
		engine.WithErrorHandler(func(re *engine.RuntimeError) {
			h.result.Codes = append(h.result.Codes, string(re.Code))
		}),
	}
	if settings, ok := o.settings(scenario); ok {
		engineOpts = append(engineOpts,
			engine.WithClock(testutil.NewFakeClock()),
			engine.WithStrategy(settings),
		)
	}
	h.engine = engine.New(h.doc, reg, engineOpts...)
	defer h.engine.Close()

	h.buildFixtures(scenario.Fixtures)

	compiled, err := h.comp.CompileTemplate(scenario.Template, h.values)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template: %w", err)
	}
	h.result.Compiled = compiled

	h.host = h.doc.CreateElement("main")
	if err := h.host.SetInnerHTML(compiled); err != nil {
		return nil, fmt.Errorf("failed to mount template: %w", err)
	}
	h.doc.Root().AppendChild(h.host)
	if err := h.engine.Tick(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := h.engine.Tick(); err != nil {
			return nil, err
		}
	}

	ctx := context.Background()
	events, err := st.ReadEvents(ctx, h.engine.Session())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	result := h.result
	result.Trace = fromStore(events)
	result.Markup = h.host.InnerHTML()
	result.Subscriptions = h.engine.Stats().Subscriptions
	maps.Copy(result.Model, h.model)

	for _, msg := range checkExpect(result, scenario.Expect) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// registry returns a registry minting from zero so markers are stable.
func (o options) registry() *registry.Registry {
	opts := []registry.Option{registry.WithClock(registry.NewClockAt(0))}
	if o.prefix != "" {
		opts = append(opts, registry.WithPrefix(o.prefix))
	}
	return registry.New(opts...)
}

// settings picks the scenario's strategy over the configured default.
func (o options) settings(s *Scenario) (scheduler.Settings, bool) {
	if s.Scheduler != "" {
		return scheduler.Settings{Strategy: s.Scheduler, Smoothing: 0.5}, true
	}
	if o.scheduler != nil {
		return *o.scheduler, true
	}
	return scheduler.Settings{}, false
}

func newHarness(reg *registry.Registry, o options) *Harness {
	copts := []compiler.Option{compiler.WithLogger(o.logger)}
	if o.nonBubbling != nil {
		copts = append(copts, compiler.WithNonBubbling(o.nonBubbling...))
	}
	return &Harness{
		doc:      dom.NewDocument(),
		comp:     compiler.New(reg, copts...),
		values:   make(map[string]any),
		states:   make(map[string]*stream.State),
		subjects: make(map[string]*stream.Subject),
		futures:  make(map[string]*stream.Future),
		model:    ir.Map{},
		result:   NewResult(),
	}
}

// CompileTemplate compiles src against fixtures without mounting it.
// It returns the annotated markup and the pending bindings per marker.
// Only the marker prefix, non-bubbling and logger options apply.
func CompileTemplate(src string, fixtures map[string]Fixture, opts ...Option) (string, map[string]any, error) {
	o := newOptions(opts)
	reg := o.registry()
	h := newHarness(reg, o)
	h.buildFixtures(fixtures)
	markup, err := h.comp.CompileTemplate(src, h.values)
	if err != nil {
		return "", nil, err
	}
	return markup, reg.Snapshot(), nil
}

// buildFixtures turns fixture descriptions into template values. Hints
// are built last so their sources exist.
func (h *Harness) buildFixtures(fixtures map[string]Fixture) {
	names := slices.Sorted(maps.Keys(fixtures))
	for _, name := range names {
		f := fixtures[name]
		switch f.Type {
		case FixtureState:
			s := stream.NewState(f.Value)
			h.states[name] = s
			h.values[name] = s
		case FixtureSubject:
			s := stream.NewSubject()
			h.subjects[name] = s
			h.values[name] = s
		case FixtureFuture:
			fut := stream.NewFuture()
			if f.Value != nil {
				fut.Resolve(f.Value)
			}
			h.futures[name] = fut
			h.values[name] = fut
		case FixturePlain:
			h.values[name] = f.Value
		case FixtureAttrs:
			attrs := ir.Attrs{}
			maps.Copy(attrs, f.Value.(map[string]any))
			h.values[name] = attrs
		case FixtureHandler:
			h.values[name] = h.handler(name, f)
		case FixtureBind:
			h.values[name] = ir.Bind(h.model, f.Key)
		}
	}
	for _, name := range names {
		if f := fixtures[name]; f.Type == FixtureHint {
			h.values[name] = ir.WithSink(f.Sink, h.values[f.Source])
		}
	}
}

// handler counts its calls and optionally feeds a state or subject.
func (h *Harness) handler(name string, f Fixture) dom.Listener {
	return func(ev *dom.Event) {
		h.result.Calls[name]++
		if f.Stop {
			ev.StopPropagation()
		}
		if f.Emit == "" {
			return
		}
		v := f.Value
		if v == nil {
			v = h.result.Calls[name]
		}
		if s, ok := h.states[f.Emit]; ok {
			s.Next(v)
			return
		}
		if s, ok := h.subjects[f.Emit]; ok {
			s.Next(v)
		}
	}
}

func (h *Harness) execute(step Step) error {
	switch {
	case step.Dispatch != nil:
		el, err := h.find(step.Dispatch.Target)
		if err != nil {
			return err
		}
		bubbles := true
		if step.Dispatch.Bubbles != nil {
			bubbles = *step.Dispatch.Bubbles
		}
		el.Dispatch(dom.NewEvent(step.Dispatch.Event, bubbles))
	case step.Input != nil:
		el, err := h.find(step.Input.Target)
		if err != nil {
			return err
		}
		if step.Input.Checked != nil {
			el.SetProp("checked", *step.Input.Checked)
		} else {
			el.SetProp("value", step.Input.Value)
		}
		event := step.Input.Event
		if event == "" {
			event = "input"
		}
		el.Dispatch(dom.NewEvent(event, true))
	case step.Next != nil:
		if s, ok := h.states[step.Next.Fixture]; ok {
			s.Next(step.Next.Value)
		} else {
			h.subjects[step.Next.Fixture].Next(step.Next.Value)
		}
	case step.Error != nil:
		h.subjects[step.Error.Fixture].Error(errors.New(ir.Stringify(step.Error.Value)))
	case step.Complete != "":
		h.subjects[step.Complete].Complete()
	case step.Resolve != nil:
		h.futures[step.Resolve.Fixture].Resolve(step.Resolve.Value)
	case step.Reject != nil:
		h.futures[step.Reject.Fixture].Reject(errors.New(ir.Stringify(step.Reject.Value)))
	case step.Remove != "":
		el, err := h.find(step.Remove)
		if err != nil {
			return err
		}
		el.Remove()
	case step.Append != "":
		markup, err := h.comp.CompileTemplate(step.Append, h.values)
		if err != nil {
			return fmt.Errorf("compile appended markup: %w", err)
		}
		nodes, err := h.doc.ParseFragment(markup)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			h.host.AppendChild(n)
		}
	}
	return nil
}

// find resolves "#id" or a tag name under the host.
func (h *Harness) find(target string) (*dom.Node, error) {
	var el *dom.Node
	if id, ok := strings.CutPrefix(target, "#"); ok {
		el = h.host.ByID(id)
	} else {
		el = h.host.ByTag(target)
	}
	if el == nil {
		return nil, fmt.Errorf("no element matches %q", target)
	}
	return el, nil
}

// checkExpect compares the final state against e.
func checkExpect(r *Result, e *Expect) []string {
	if e == nil {
		return nil
	}
	var errs []string
	if e.Markup != nil && r.Markup != *e.Markup {
		errs = append(errs, (&AssertionError{
			Type:     "markup",
			Expected: *e.Markup,
			Actual:   r.Markup,
			Trace:    r.Trace,
		}).Error())
	}
	for _, name := range slices.Sorted(maps.Keys(e.Calls)) {
		if got, want := r.Calls[name], e.Calls[name]; got != want {
			errs = append(errs, (&AssertionError{
				Type:     "calls",
				Expected: fmt.Sprintf("%s called %d times", name, want),
				Actual:   fmt.Sprintf("%d calls", got),
				Trace:    r.Trace,
			}).Error())
		}
	}
	if !matchDetail(r.Model, e.Model) {
		errs = append(errs, (&AssertionError{
			Type:     "model",
			Expected: fmt.Sprintf("%v", e.Model),
			Actual:   fmt.Sprintf("%v", r.Model),
			Trace:    r.Trace,
		}).Error())
	}
	if e.Errors != nil && !slices.Equal(r.Codes, e.Errors) {
		errs = append(errs, (&AssertionError{
			Type:     "errors",
			Expected: fmt.Sprintf("%v", e.Errors),
			Actual:   fmt.Sprintf("%v", r.Codes),
			Trace:    r.Trace,
		}).Error())
	}
	if e.Subscriptions != nil && r.Subscriptions != *e.Subscriptions {
		errs = append(errs, (&AssertionError{
			Type:     "subscriptions",
			Expected: fmt.Sprintf("%d live subscriptions", *e.Subscriptions),
			Actual:   fmt.Sprintf("%d", r.Subscriptions),
			Trace:    r.Trace,
		}).Error())
	}
	return errs
}
