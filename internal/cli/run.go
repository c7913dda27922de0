package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/livemark/internal/engine"
	"github.com/roach88/livemark/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// Sessions overrides the trace session generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Sessions engine.SessionGenerator
}

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Scenario string `json:"scenario"`
	*harness.Result
}

// RenderText prints the compiled markup, the final markup and the trace.
func (r RunResult) RenderText(w io.Writer) {
	writeRunText(w, r.Scenario, r.Result)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and show what the engine did",
		Long: `Run a single scenario through the binding engine and print the
compiled markup, the final markup and the trace.

With --db (or trace.database in the config file) the trace is kept in a
SQLite database under a fresh session so it can be inspected later with
"livemark trace".

Examples:
  livemark run ./scenarios/counter.yaml
  livemark run ./scenarios/counter.yaml --db ./livemark.db
  livemark run ./scenarios/counter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")

	return cmd
}

func runOne(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return formatter.Fail(ErrCodeScenario, "failed to load scenario", err)
	}

	hopts, err := opts.harnessOptions()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, "invalid config", err)
	}

	db := opts.Database
	if db == "" && opts.Config != nil {
		db = opts.Config.Trace.Database
	}
	if db != "" {
		sessions := opts.Sessions
		if sessions == nil {
			sessions = engine.UUIDv7Generator{}
		}
		hopts = append(hopts, harness.WithDatabase(db), harness.WithSessionGenerator(sessions))
		formatter.VerboseLog("Tracing to %s", db)
	}

	result, err := harness.Run(scenario, hopts...)
	if err != nil {
		return formatter.Fail(ErrCodeScenarioFailed, "scenario failed", err)
	}

	out := RunResult{Scenario: scenario.Name, Result: result}
	if !result.Pass {
		return formatter.Failure(ErrCodeScenarioFailed, fmt.Sprintf("scenario %s failed", scenario.Name), out)
	}
	return formatter.Success(out)
}

func writeRunText(w io.Writer, name string, result *harness.Result) {
	fmt.Fprintf(w, "Scenario: %s\n\n", name)

	fmt.Fprintln(w, "=== Compiled ===")
	fmt.Fprintf(w, "  %s\n\n", result.Compiled)

	fmt.Fprintln(w, "=== Markup ===")
	fmt.Fprintf(w, "  %s\n\n", result.Markup)

	fmt.Fprintln(w, "=== Trace ===")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Trace {
		writeEvent(w, ev.Seq, ev.Kind, ev.Marker, ev.NodeID, ev.Detail)
	}
	fmt.Fprintln(w)

	if result.Pass {
		fmt.Fprintln(w, "✓ Scenario passed")
		return
	}
	fmt.Fprintln(w, "✗ Scenario failed")
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
