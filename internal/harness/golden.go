package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/livemark/internal/ir"
)

// TraceSnapshot captures what a scenario execution produced.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Compiled     string       `json:"compiled"`
	Markup       string       `json:"markup"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"kind":    ev.Kind,
			"node_id": ev.NodeID,
		}
		if ev.Marker != "" {
			m["marker"] = ev.Marker
		}
		if len(ev.Detail) > 0 {
			m["detail"] = ev.Detail
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"compiled":      s.Compiled,
		"markup":        s.Markup,
		"trace":         traceList,
	}
}

// Snapshot renders the golden file contents for a result: indented
// canonical JSON of its compiled markup, final markup and trace.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Compiled:     result.Compiled,
		Markup:       result.Markup,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonicalIndent(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
