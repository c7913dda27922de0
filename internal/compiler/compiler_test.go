package compiler

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/registry"
	"github.com/roach88/livemark/internal/stream"
)

func newCompiler(opts ...Option) *Compiler {
	return New(registry.New(registry.WithClock(registry.NewClockAt(0))), opts...)
}

func TestCompile_OnClickScenario(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<button onclick="`, `">click</button>`}, func() {})
	require.NoError(t, err)

	assert.Equal(t, `<button resolve="lm+0" onclick="lm+0">click</button>`, out)
	bindings := c.Registry().Drain("lm+0")
	require.Len(t, bindings, 1)
	src, ok := bindings[0].(ir.SourceBinding)
	require.True(t, ok)
	assert.Equal(t, "click", src.Event)
	assert.False(t, src.Direct)
	assert.NotNil(t, src.Listener)
}

func TestCompile_EventForms(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		expr     any
		want     string
		desc     []any
	}{
		{
			name:     "unquoted",
			segments: []string{`<button onclick=`, `>x</button>`},
			expr:     func() {},
			want:     `<button resolve="lm+0" onclick="lm+0">x</button>`,
			desc:     []any{"source:click"},
		},
		{
			name:     "single quoted",
			segments: []string{`<button onclick='`, `'>x</button>`},
			expr:     func() {},
			want:     `<button resolve="lm+0" onclick='lm+0'>x</button>`,
			desc:     []any{"source:click"},
		},
		{
			name:     "non-bubbling",
			segments: []string{`<img src="/a.png" onload="`, `">`},
			expr:     func() {},
			want:     `<img resolve="lm+0" src="/a.png" onload="lm+0">`,
			desc:     []any{"source:load:direct"},
		},
		{
			name:     "namespaced mount",
			segments: []string{`<div on:mount="`, `"></div>`},
			expr:     func() {},
			want:     `<div resolve="lm+0" on:mount="lm+0"></div>`,
			desc:     []any{"source:mount"},
		},
		{
			name:     "observer",
			segments: []string{`<input oninput="`, `">`},
			expr:     stream.NewSubject(),
			want:     `<input resolve="lm+0" oninput="lm+0">`,
			desc:     []any{"source:input"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCompiler()
			out, err := c.Compile(tt.segments, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			if diff := cmp.Diff(map[string]any{"lm+0": tt.desc}, c.Registry().Snapshot()); diff != "" {
				t.Errorf("registry mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompile_EmptyEventIsDropped(t *testing.T) {
	for _, expr := range []any{nil, "not a listener", 42} {
		c := newCompiler()
		out, err := c.Compile([]string{`<button onclick="`, `">x</button>`}, expr)
		require.NoError(t, err)
		assert.Equal(t, `<button>x</button>`, out)
		assert.Equal(t, 0, c.Registry().Len())
	}
}

func TestCompile_AttributeKinds(t *testing.T) {
	tests := []struct {
		attr string
		desc string
	}{
		{"class", "sink:class:stream"},
		{"style", "sink:style:stream"},
		{"value", "sink:value:stream"},
		{"data-user-id", "sink:dataset(user-id):stream"},
		{"title", "sink:attribute(title):stream"},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			c := newCompiler()
			out, err := c.Compile([]string{`<div ` + tt.attr + `="`, `" id="x"></div>`}, stream.NewSubject())
			require.NoError(t, err)
			assert.Equal(t, `<div resolve="lm+0" id="x"></div>`, out)
			assert.Equal(t, map[string]any{"lm+0": []any{tt.desc}}, c.Registry().Snapshot())
		})
	}
}

func TestCompile_AttributeWithStaticPartsDegrades(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<div class="btn `, `"></div>`}, stream.NewState("primary"))
	require.NoError(t, err)
	assert.Equal(t, `<div class="btn primary"></div>`, out)
	assert.Equal(t, 0, c.Registry().Len())
}

func TestCompile_DroppedLiveBindingWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c := newCompiler(WithLogger(logger))

	_, err := c.Compile([]string{`<div class="btn `, `">`, `</div>`}, stream.NewSubject(), "plain")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="live binding dropped"`)
	assert.Contains(t, buf.String(), "slot=0")
	assert.NotContains(t, buf.String(), "slot=1", "plain values are not reported")
}

func TestCompile_PlainValues(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<a href="`, `">`, ` of `, `</a>`}, "/items", 3, []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="/items">3 of ab</a>`, out)
	assert.Equal(t, 0, c.Registry().Len())
}

func TestCompile_CurrentValueFastPath(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<div>`, `</div>`}, stream.NewState("A"))
	require.NoError(t, err)
	assert.Equal(t, `<div resolve="lm+0">A</div>`, out)

	bindings := c.Registry().Drain("lm+0")
	require.Len(t, bindings, 1)
	sb := bindings[0].(ir.SinkBinding)
	assert.Equal(t, ir.SinkInnerHTML, sb.Sink)
	assert.True(t, sb.SkipFirst)
	assert.False(t, sb.TextSlot)
}

func TestCompile_ContentWithoutCurrentValue(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<div>`, `</div>`}, stream.NewFuture())
	require.NoError(t, err)
	assert.Equal(t, `<div resolve="lm+0"></div>`, out)

	sb := c.Registry().Drain("lm+0")[0].(ir.SinkBinding)
	assert.False(t, sb.SkipFirst)
}

func TestCompile_HintedContent(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<pre>`, `</pre>`}, ir.WithSink(ir.SinkTextContent, stream.NewState("<b>")))
	require.NoError(t, err)
	assert.Equal(t, `<pre resolve="lm+0">&lt;b&gt;</pre>`, out)
	assert.Equal(t, map[string]any{"lm+0": []any{"sink:textContent:hint"}}, c.Registry().Snapshot())
}

func TestCompile_TextSlots(t *testing.T) {
	c := newCompiler()
	name := stream.NewState("Ann")
	count := stream.NewSubject()
	out, err := c.Compile([]string{`<p>Hi `, `, you have `, ` new</p>`}, name, count)
	require.NoError(t, err)
	assert.Equal(t, "<p resolve=\"lm+0\">Hi \x02Ann\x03, you have \x02\x03 new</p>", out)

	bindings := c.Registry().Drain("lm+0")
	require.Len(t, bindings, 2)
	first := bindings[0].(ir.SinkBinding)
	second := bindings[1].(ir.SinkBinding)
	assert.Equal(t, ir.SinkText, first.Sink)
	assert.True(t, first.TextSlot)
	assert.True(t, first.SkipFirst)
	assert.True(t, second.TextSlot)
	assert.False(t, second.SkipFirst)
}

func TestCompile_SiblingSlotIsText(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<p>`, `<b>x</b></p>`}, stream.NewSubject())
	require.NoError(t, err)
	assert.Equal(t, "<p resolve=\"lm+0\">\x02\x03<b>x</b></p>", out)
}

func TestCompile_TextSlotOutsideElementDegrades(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`Hello `, `!`}, stream.NewState("you"))
	require.NoError(t, err)
	assert.Equal(t, `Hello you!`, out)
	assert.Equal(t, 0, c.Registry().Len())
}

func TestCompile_SlotInCommentDegrades(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<div><!-- `, ` --></div>`}, stream.NewSubject())
	require.NoError(t, err)
	assert.Equal(t, `<div><!--  --></div>`, out)
	assert.Equal(t, 0, c.Registry().Len())
}

func TestCompile_Mixin(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<a ...`, `>go</a>`}, map[string]any{"href": "/x"})
	require.NoError(t, err)
	assert.Equal(t, `<a resolve="lm+0">go</a>`, out)
	assert.Equal(t, map[string]any{"lm+0": []any{"sink:mixin:object"}}, c.Registry().Snapshot())
}

func TestCompile_SharedMarkerPerTag(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile(
		[]string{`<input class="`, `" oninput="`, `" data-id="`, `">`},
		stream.NewSubject(), func() {}, stream.NewFuture(),
	)
	require.NoError(t, err)
	assert.Equal(t, `<input resolve="lm+0" oninput="lm+0">`, out)
	want := map[string]any{"lm+0": []any{"sink:class:stream", "source:input", "sink:dataset(id):thenable"}}
	if diff := cmp.Diff(want, c.Registry().Snapshot()); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_ReusesLiteralResolve(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile([]string{`<div resolve="lm+9" class="`, `"></div>`}, stream.NewSubject())
	require.NoError(t, err)
	assert.Equal(t, `<div resolve="lm+9"></div>`, out)
	assert.True(t, c.Registry().Has("lm+9"))
}

func TestCompile_NestedElements(t *testing.T) {
	c := newCompiler()
	out, err := c.Compile(
		[]string{`<ul><li class="`, `">`, `</li><br><li>`, `</li></ul>`},
		stream.NewSubject(), stream.NewSubject(), stream.NewSubject(),
	)
	require.NoError(t, err)
	assert.Equal(t, `<ul><li resolve="lm+0"></li><br><li resolve="lm+1"></li></ul>`, out)
	assert.Equal(t, map[string]any{
		"lm+0": []any{"sink:class:stream", "sink:innerHTML:stream"},
		"lm+1": []any{"sink:innerHTML:stream"},
	}, c.Registry().Snapshot())
}

func TestCompile_ArityMismatch(t *testing.T) {
	c := newCompiler()
	_, err := c.Compile([]string{"a", "b"})
	require.Error(t, err)
	assert.True(t, IsCompileError(err))
	assert.Contains(t, err.Error(), "2 segments need 1 expressions, got 0")
}

func TestCompile_MarkerUniqueness(t *testing.T) {
	const templates = 50
	seen := make(map[ir.Marker]bool)
	for range templates {
		c := New(registry.New())
		_, err := c.Compile([]string{`<div class="`, `"><span>`, `</span></div>`}, stream.NewSubject(), stream.NewSubject())
		require.NoError(t, err)
		for _, m := range c.Registry().Markers() {
			require.False(t, seen[m], "marker %s minted twice", m)
			seen[m] = true
		}
	}
	assert.Len(t, seen, templates*2)
}

func TestCompile_WithNonBubbling(t *testing.T) {
	c := newCompiler(WithNonBubbling("click"))
	_, err := c.Compile([]string{`<button onclick="`, `"></button>`}, func() {})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lm+0": []any{"source:click:direct"}}, c.Registry().Snapshot())
}

func TestSplit(t *testing.T) {
	segments, names := Split("a ${x} b ${ y.z }c${w}")
	assert.Equal(t, []string{"a ", " b ", "c", ""}, segments)
	assert.Equal(t, []string{"x", "y.z", "w"}, names)

	segments, names = Split("no placeholders")
	assert.Equal(t, []string{"no placeholders"}, segments)
	assert.Empty(t, names)
}

func TestCompileTemplate(t *testing.T) {
	c := newCompiler()
	out, err := c.CompileTemplate(`<p title="${meta.title}">${count}</p>`, map[string]any{
		"meta":  map[string]any{"title": "hi"},
		"count": 2,
	})
	require.NoError(t, err)
	assert.Equal(t, `<p title="hi">2</p>`, out)

	_, err = c.CompileTemplate(`<p>${missing}</p>`, nil)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "missing", ce.Name)
	assert.Equal(t, 0, ce.Slot)
}

func TestCompile_Golden(t *testing.T) {
	c := newCompiler()
	values := map[string]any{
		"fn":    func() {},
		"cls":   stream.NewSubject(),
		"body":  stream.NewState("<b>A</b>"),
		"name":  stream.NewState("Ann & Bob"),
		"attrs": map[string]any{"href": "/home"},
		"id":    stream.NewFuture(),
		"n":     3,
		"none":  nil,
	}
	templates := []struct{ name, src string }{
		{"event", `<button onclick="${fn}">click</button>`},
		{"class", `<div class="${cls}"></div>`},
		{"content", `<section>${body}</section>`},
		{"text", `<p>Hello ${name}!</p>`},
		{"mixin", `<a ...${attrs}>go</a>`},
		{"shared", `<input class="${cls}" oninput="${fn}" data-id="${id}">`},
		{"load", `<img src="/a.png" onload="${fn}">`},
		{"plain", `<p>${n} items</p>`},
		{"dropped", `<button onclick="${none}">x</button>`},
	}

	cases := make([]any, 0, len(templates))
	for _, tt := range templates {
		out, err := c.CompileTemplate(tt.src, values)
		require.NoError(t, err, tt.name)
		cases = append(cases, map[string]any{"name": tt.name, "markup": out})
	}
	data, err := ir.MarshalCanonicalIndent(map[string]any{
		"cases":    cases,
		"registry": c.Registry().Snapshot(),
	})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "templates", data)
}
