package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livemark/internal/ir"
)

// To regenerate golden files:
//
//	go test ./internal/harness -run Golden -update
func TestRunWithGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"counter", "lifecycle", "form"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	result, err := Run(loadTestScenario(t, "counter"))
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, "counter", result))
}

func TestTraceSnapshot_CanonicalDeterminism(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "determinism",
		Compiled:     `<p resolve="lm+0"></p>`,
		Markup:       "<p></p>",
		Trace:        sampleTrace(),
	}

	first, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	for range 10 {
		again, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTraceSnapshot_OmitsEmptyFields(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "omit",
		Trace:        []TraceEvent{{Seq: 1, Kind: "orphan", NodeID: 0}},
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"compiled":"","markup":"","scenario_name":"omit","trace":[{"kind":"orphan","node_id":0,"seq":1}]}`,
		string(data))
}
