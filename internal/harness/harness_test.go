package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livemark/internal/engine"
	"github.com/roach88/livemark/internal/scheduler"
	"github.com/roach88/livemark/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"counter", "lifecycle", "form", "stream_error", "batched"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Counter(t *testing.T) {
	result, err := Run(loadTestScenario(t, "counter"))
	require.NoError(t, err)

	assert.Equal(t, `<button>+</button><span>2</span>`, result.Markup)
	assert.Equal(t, 2, result.Calls["inc"])
	assert.Equal(t, 1, result.Subscriptions)
	assert.Empty(t, result.Codes)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "lm+0", result.Trace[0].Marker)
	assert.Equal(t, "lm+1", result.Trace[1].Marker)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestScenario(t, "lifecycle")
	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Compiled, second.Compiled)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestRun_FailedExpectationsReported(t *testing.T) {
	markup := "<p>wrong</p>"
	s := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Template:    `<p>${v}</p>`,
		Fixtures:    map[string]Fixture{"v": {Type: FixtureState, Value: "right"}},
		Expect: &Expect{
			Markup: &markup,
			Errors: []string{"SINK_ERROR"},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Kind: "dispose", Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Assertion failed: markup")
	assert.Contains(t, result.Errors[1], "Assertion failed: errors")
	assert.Contains(t, result.Errors[2], "Assertion failed: trace_count")
}

func TestRun_StopPropagation(t *testing.T) {
	s := &Scenario{
		Name:        "stop",
		Description: "An inner handler stops the outer one",
		Template:    `<div onclick="${outer}"><button onclick="${inner}">x</button></div>`,
		Fixtures: map[string]Fixture{
			"outer": {Type: FixtureHandler},
			"inner": {Type: FixtureHandler, Stop: true},
		},
		Steps: []Step{{Dispatch: &DispatchStep{Target: "button", Event: "click"}}},
		Expect: &Expect{
			Calls: map[string]int{"inner": 1, "outer": 0},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AppendBindsNewMarkup(t *testing.T) {
	s := &Scenario{
		Name:        "append",
		Description: "Markup appended after mount is bound on the next turn",
		Template:    `<p>${title}</p>`,
		Fixtures: map[string]Fixture{
			"title": {Type: FixtureState, Value: "a"},
		},
		Steps: []Step{
			{Append: `<em>${title}</em>`},
			{Next: &EmitStep{Fixture: "title", Value: "b"}},
		},
		Expect: &Expect{},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Kind: "bind", Count: 2},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, `<p>b</p><em>b</em>`, result.Markup)
	assert.Equal(t, 2, result.Subscriptions)
}

func TestRun_FutureAndHint(t *testing.T) {
	s := &Scenario{
		Name:        "future",
		Description: "A hinted future writes text content once it resolves",
		Template:    `<h1>${heading}</h1>`,
		Fixtures: map[string]Fixture{
			"data":    {Type: FixtureFuture},
			"heading": {Type: FixtureHint, Sink: "textContent", Source: "data"},
		},
		Steps: []Step{
			{Resolve: &EmitStep{Fixture: "data", Value: "<b>loaded</b>"}},
		},
		Expect: &Expect{},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, `<h1>&lt;b&gt;loaded&lt;/b&gt;</h1>`, result.Markup)
}

func TestRun_UnknownTarget(t *testing.T) {
	s := &Scenario{
		Name:        "missing",
		Description: "Dispatch on an element that does not exist",
		Template:    `<p>x</p>`,
		Steps:       []Step{{Dispatch: &DispatchStep{Target: "#nope", Event: "click"}}},
		Expect:      &Expect{},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `steps[0]: no element matches "#nope"`)
}

func TestRun_MissingFixture(t *testing.T) {
	s := &Scenario{
		Name:        "unresolved",
		Description: "Placeholder without a fixture",
		Template:    `<p>${nothing}</p>`,
		Expect:      &Expect{},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile template")
}

func TestCompileTemplate(t *testing.T) {
	markup, pending, err := CompileTemplate(`<a href="${href}" onclick="${go}">${label}</a>`, map[string]Fixture{
		"href":  {Type: FixtureSubject},
		"go":    {Type: FixtureHandler},
		"label": {Type: FixtureState, Value: "home"},
	})
	require.NoError(t, err)
	assert.Equal(t, `<a resolve="lm+0" onclick="lm+0">home</a>`, markup)
	assert.Equal(t, map[string]any{
		"lm+0": []any{"sink:attribute(href):stream", "source:click", "sink:innerHTML:stream"},
	}, pending)
}

func TestRun_SharedDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	gen := engine.NewFixedGenerator("first", "second")

	for range 2 {
		result, err := Run(loadTestScenario(t, "counter"), WithDatabase(db), WithSessionGenerator(gen))
		require.NoError(t, err)
		assert.Len(t, result.Trace, 2)
	}

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "first", sessions[0].ID)
	assert.Equal(t, "counter", sessions[0].Label)
	assert.Equal(t, "second", sessions[1].ID)
}

func TestCompileTemplate_Options(t *testing.T) {
	markup, pending, err := CompileTemplate(`<video onplay="${h}"></video>`,
		map[string]Fixture{"h": {Type: FixtureHandler}},
		WithMarkerPrefix("v-"), WithNonBubbling([]string{"play"}))
	require.NoError(t, err)
	assert.Equal(t, `<video resolve="v-0" onplay="v-0"></video>`, markup)
	assert.Equal(t, map[string]any{"v-0": []any{"source:play:direct"}}, pending)
}

func TestRun_DefaultScheduler(t *testing.T) {
	s := loadTestScenario(t, "counter")
	result, err := Run(s, WithScheduler(scheduler.Settings{Strategy: scheduler.StrategyDebounce}))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, `<button>+</button><span>2</span>`, result.Markup)
}
