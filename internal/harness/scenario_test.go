package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: test_scenario
description: "Test scenario for validation"
template: '<p class="${cls}">${text}</p>'
fixtures:
  cls: { type: subject }
  text: { type: state, value: hi }
steps:
  - next: { fixture: cls, value: big }
expect:
  markup: '<p class="big">hi</p>'
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, `<p class="${cls}">${text}</p>`, s.Template)
	assert.Equal(t, FixtureSubject, s.Fixtures["cls"].Type)
	assert.Equal(t, "hi", s.Fixtures["text"].Value)
	require.Len(t, s.Steps, 1)
	require.NotNil(t, s.Steps[0].Next)
	assert.Equal(t, "big", s.Steps[0].Next.Value)
	require.NotNil(t, s.Expect.Markup)
	assert.Equal(t, `<p class="big">hi</p>`, *s.Expect.Markup)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "assertion")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\ntemplate: t\nexpect: {}\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\ntemplate: t\nexpect: {}\n",
			want: "description is required",
		},
		{
			name: "missing template",
			yaml: "name: n\ndescription: d\nexpect: {}\n",
			want: "template is required",
		},
		{
			name: "nothing to check",
			yaml: "name: n\ndescription: d\ntemplate: t\n",
			want: "expect or assertions is required",
		},
		{
			name: "unknown scheduler",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nscheduler: fastest\n",
			want: `unknown scheduler strategy "fastest"`,
		},
		{
			name: "unknown fixture type",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nfixtures:\n  a: { type: signal }\n",
			want: `fixtures.a: unknown fixture type "signal"`,
		},
		{
			name: "bind without key",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nfixtures:\n  a: { type: bind }\n",
			want: "fixtures.a: key is required for bind",
		},
		{
			name: "hint with unknown source",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nfixtures:\n  a: { type: hint, sink: text, source: b }\n",
			want: `fixtures.a: unknown source fixture "b"`,
		},
		{
			name: "handler emitting into a plain value",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nfixtures:\n  a: { type: handler, emit: b }\n  b: { type: plain, value: 1 }\n",
			want: `fixtures.a: emit target "b" is not a state or subject`,
		},
		{
			name: "step with two actions",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nsteps:\n  - { remove: p, append: x }\n",
			want: "steps[0]: exactly one action is required, got 2",
		},
		{
			name: "step with no action",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nsteps:\n  - {}\n",
			want: "steps[0]: exactly one action is required, got 0",
		},
		{
			name: "next on unknown fixture",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nsteps:\n  - next: { fixture: x, value: 1 }\n",
			want: `steps[0]: unknown fixture "x"`,
		},
		{
			name: "resolve on a subject",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nfixtures:\n  s: { type: subject }\nsteps:\n  - resolve: { fixture: s, value: 1 }\n",
			want: `steps[0]: fixture "s" has type subject`,
		},
		{
			name: "dispatch without event",
			yaml: "name: n\ndescription: d\ntemplate: t\nexpect: {}\nsteps:\n  - dispatch: { target: p }\n",
			want: "steps[0]: dispatch needs target and event",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\ntemplate: t\nassertions:\n  - type: final_state\n",
			want: `assertions[0]: unknown assertion type "final_state"`,
		},
		{
			name: "trace_order without kinds",
			yaml: "name: n\ndescription: d\ntemplate: t\nassertions:\n  - type: trace_order\n",
			want: "assertions[0]: kinds list is required for trace_order",
		},
		{
			name: "negative count",
			yaml: "name: n\ndescription: d\ntemplate: t\nassertions:\n  - { type: trace_count, kind: bind, count: -1 }\n",
			want: "assertions[0]: count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			assert.NoError(t, err)
		})
	}
}
