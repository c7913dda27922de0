// Package compiler turns templates into markup annotated with markers.
//
// Compile makes one left-to-right pass over the literal segments. After each
// segment it looks at the tail of the markup built so far to decide what the
// following expression slot is:
//
//	<button onclick="${fn}">        event attribute  -> source binding
//	<div class="${s}">              attribute value  -> class/style/value/dataset/attribute sink
//	<div ...${attrs}>               mixin            -> mixin sink
//	<div>${content}</div>           inner content    -> innerHTML sink (or the hinted sink)
//	<p>Hello ${name}!</p>           text             -> text sink on a split text node
//
// Plain values are concatenated as they are. Bound elements carry a
// resolve="<marker>" attribute; every binding on one tag shares a marker.
// Expressions that fit no context degrade to literal concatenation.
package compiler

import (
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/registry"
	"github.com/roach88/livemark/internal/source"
)

// DefaultNonBubbling lists events that do not bubble and therefore get a
// direct listener instead of the delegated root listener.
var DefaultNonBubbling = []string{
	"abort", "blur", "error", "focus", "load", "loadend", "loadstart",
	"mouseenter", "mouseleave", "pointerenter", "pointerleave", "progress",
	"resize", "scroll", "toggle", "unload",
}

var (
	eventTail   = regexp.MustCompile(`\s(on:?([a-z][a-z0-9_-]*))=(["']?)$`)
	attrTail    = regexp.MustCompile(`\s([^\s"'<>/=]+)=(["']?)$`)
	mixinTail   = regexp.MustCompile(`\s\.\.\.$`)
	resolveAttr = regexp.MustCompile(`\s` + ir.ResolveAttr + `=["']([^"']*)["']`)
)

// Compiler compiles templates against a registry.
type Compiler struct {
	reg         *registry.Registry
	nonBubbling map[string]bool
	logger      *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithNonBubbling replaces DefaultNonBubbling.
func WithNonBubbling(events ...string) Option {
	return func(c *Compiler) {
		c.nonBubbling = make(map[string]bool, len(events))
		for _, e := range events {
			c.nonBubbling[e] = true
		}
	}
}

// WithLogger sets the logger for degraded slots. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New creates a compiler registering bindings in reg.
func New(reg *registry.Registry, opts ...Option) *Compiler {
	c := &Compiler{reg: reg, logger: slog.Default()}
	WithNonBubbling(DefaultNonBubbling...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry bindings are added to.
func (c *Compiler) Registry() *registry.Registry { return c.reg }

// Compile interleaves segments with exprs and returns the annotated markup.
// len(segments) must be len(exprs)+1.
func (c *Compiler) Compile(segments []string, exprs ...any) (string, error) {
	if len(segments) != len(exprs)+1 {
		return "", &CompileError{
			Slot:    -1,
			Message: fmt.Sprintf("%d segments need %d expressions, got %d", len(segments), len(segments)-1, len(exprs)),
		}
	}
	segs := slices.Clone(segments)
	acc := segs[0]
	for i, raw := range exprs {
		p := &pass{c: c, slot: i, acc: acc, next: segs[i+1], ctx: scan(acc)}
		p.place(ir.Classify(raw))
		acc = p.acc + p.next
	}
	return acc, nil
}

// pass places one expression slot.
type pass struct {
	c    *Compiler
	slot int
	acc  string
	next string
	ctx  context
}

func (p *pass) place(e ir.Expr) {
	switch {
	case p.ctx.opaque, p.ctx.closing:
		p.degrade(e, "slot inside comment or raw text")
	case p.ctx.inTag:
		p.inTag(e)
	default:
		p.inContent(e)
	}
}

func (p *pass) inTag(e ir.Expr) {
	tag := p.acc[p.ctx.tagStart:]
	if m := eventTail.FindStringSubmatchIndex(tag); m != nil && p.quoteMatches(tag[m[6]:m[7]]) {
		p.event(tag[m[4]:m[5]], tag[m[6]:m[7]], p.ctx.tagStart+m[0], e)
		return
	}
	if m := mixinTail.FindStringIndex(tag); m != nil && p.ctx.quote == 0 && opensOrClosesTag(p.next) {
		if !ir.IsLive(e) {
			p.degrade(e, "mixin needs an object or live source")
			return
		}
		p.acc = p.acc[:p.ctx.tagStart+m[0]]
		sink, params := hinted(e, ir.SinkMixin, nil)
		p.bind(p.openTag(), ir.SinkBinding{Sink: sink, Source: e, Params: params})
		return
	}
	if m := attrTail.FindStringSubmatchIndex(tag); m != nil && p.quoteMatches(tag[m[4]:m[5]]) {
		quote := tag[m[4]:m[5]]
		if ir.IsLive(e) && p.closesValue(quote) {
			p.attribute(tag[m[2]:m[3]], quote, p.ctx.tagStart+m[0], e)
			return
		}
	}
	p.literal(e)
}

func (p *pass) quoteMatches(q string) bool {
	if q == "" {
		return p.ctx.quote == 0
	}
	return p.ctx.quote == q[0]
}

// closesValue reports whether the next segment ends the attribute value
// right away.
func (p *pass) closesValue(quote string) bool {
	if quote != "" {
		return strings.HasPrefix(p.next, quote)
	}
	return p.next == "" || opensOrClosesTag(p.next)
}

func opensOrClosesTag(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '>', '/', ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

// event handles on<name>= attributes. at is the offset of the whitespace
// before the attribute name.
func (p *pass) event(name, quote string, at int, e ir.Expr) {
	listener := source.Normalize(e)
	if listener == nil {
		p.acc = p.acc[:at]
		if quote != "" {
			p.next = strings.TrimPrefix(p.next, quote)
		}
		p.c.logger.Debug("dropping empty event slot", "slot", p.slot, "event", name)
		return
	}
	m := p.marker(p.openTag())
	if quote == "" {
		p.acc += `"` + string(m) + `"`
	} else {
		p.acc += string(m)
	}
	p.c.reg.Add(m, ir.SourceBinding{Event: name, Listener: listener, Direct: p.c.nonBubbling[name]})
}

// attribute handles name="${live}". The attribute is removed; the sink
// writes it once bound.
func (p *pass) attribute(name, quote string, at int, e ir.Expr) {
	p.acc = p.acc[:at]
	p.next = strings.TrimPrefix(p.next, quote)

	sink, params := ir.SinkAttribute, any(name)
	switch lower := strings.ToLower(name); {
	case lower == "class":
		sink, params = ir.SinkClass, nil
	case lower == "style":
		sink, params = ir.SinkStyle, nil
	case lower == "value":
		sink, params = ir.SinkValue, nil
	case strings.HasPrefix(lower, "data-"):
		sink, params = ir.SinkDataset, lower[len("data-"):]
	}
	sink, params = hinted(e, sink, params)
	p.bind(p.openTag(), ir.SinkBinding{Sink: sink, Source: e, Params: params})
}

func (p *pass) inContent(e ir.Expr) {
	if !ir.IsLive(e) {
		p.literal(e)
		return
	}
	el, ok := p.ctx.top()
	if !ok {
		p.degrade(e, "text slot outside any element")
		return
	}
	sink, params := hinted(e, ir.SinkInnerHTML, nil)
	if el.end == len(p.acc)-1 && strings.HasPrefix(strings.ToLower(p.next), "</"+el.name) {
		b := ir.SinkBinding{Sink: sink, Source: e, Params: params}
		if cur, ok := ir.Current(e); ok {
			p.acc += render(sink, cur)
			b.SkipFirst, b.Rendered = true, cur
		}
		p.bind(el, b)
		return
	}

	// A split text node cannot hold markup.
	if _, isHint := e.(ir.Hint); !isHint || sink == ir.SinkInnerHTML {
		sink = ir.SinkText
	}
	b := ir.SinkBinding{Sink: sink, Source: e, Params: params, TextSlot: true}
	slot := ir.TextOpen
	if cur, ok := ir.Current(e); ok {
		slot += html.EscapeString(ir.Stringify(cur))
		b.SkipFirst, b.Rendered = true, cur
	}
	p.bind(el, b)
	p.acc += slot + ir.TextClose
}

// openTag is the tag still being written at the end of the markup.
func (p *pass) openTag() element {
	return element{name: p.ctx.tagName, start: p.ctx.tagStart, end: len(p.acc)}
}

// bind registers b under the marker of el.
func (p *pass) bind(el element, b ir.SinkBinding) {
	p.c.reg.Add(p.marker(el), b)
}

// marker returns el's existing resolve marker or mints one and inserts the
// resolve attribute right after the tag name.
func (p *pass) marker(el element) ir.Marker {
	if m := resolveAttr.FindStringSubmatch(p.acc[el.start:el.end]); m != nil {
		return ir.Marker(m[1])
	}
	m := p.c.reg.Mint()
	at := el.start + 1 + len(el.name)
	p.acc = p.acc[:at] + ` ` + ir.ResolveAttr + `="` + string(m) + `"` + p.acc[at:]
	return m
}

// literal concatenates a value that needs no binding.
func (p *pass) literal(e ir.Expr) {
	switch x := e.(type) {
	case ir.Empty:
	case ir.Plain:
		p.acc += ir.Stringify(x.Value)
	default:
		p.degrade(e, "no binding context for expression")
	}
}

// degrade writes what can be rendered now for e: the current value of a
// stateful stream or the text of a plain value.
func (p *pass) degrade(e ir.Expr, reason string) {
	if ir.IsLive(e) {
		// The value is rendered once and never updated.
		p.c.logger.Warn("live binding dropped", "slot", p.slot, "kind", e.Kind().String(), "reason", reason)
	} else {
		p.c.logger.Debug("slot degraded to literal", "slot", p.slot, "kind", e.Kind().String(), "reason", reason)
	}
	if cur, ok := ir.Current(e); ok {
		p.acc += ir.Stringify(cur)
		return
	}
	if x, ok := e.(ir.Plain); ok {
		p.acc += ir.Stringify(x.Value)
	}
}

// hinted applies a sink hint carried by e, if any.
func hinted(e ir.Expr, sink string, params any) (string, any) {
	h, ok := e.(ir.Hint)
	if !ok {
		return sink, params
	}
	if h.Sink != "" {
		sink = h.Sink
	}
	if h.Params != nil {
		params = h.Params
	}
	return sink, params
}

// render writes a current value into markup for sink.
func render(sink string, v any) string {
	if sink == ir.SinkInnerHTML {
		return ir.Stringify(v)
	}
	return html.EscapeString(ir.Stringify(v))
}
