package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/livemark/internal/compiler"
	"github.com/roach88/livemark/internal/harness"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Fixtures string // fixtures YAML path
	Output   string // output file path
}

// CompilationResult is the compiled markup and the bindings waiting for
// each marker.
type CompilationResult struct {
	Markup  string         `json:"markup"`
	Markers map[string]any `json:"markers"`
	Output  string         `json:"output,omitempty"` // file the markup was written to
}

// RenderText prints the markup unless it went to a file.
func (r CompilationResult) RenderText(w io.Writer) {
	if r.Output == "" {
		fmt.Fprintln(w, r.Markup)
	}
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <template>",
		Short: "Compile a template to marker-annotated markup",
		Long: `Compile a template with ${name} placeholders into markup annotated
with resolve markers, and list the bindings registered for each marker.

Placeholder values come from a fixtures file using the scenario fixture
format:

  count: { type: state, value: 0 }
  inc:   { type: handler }

Examples:
  livemark compile page.html --fixtures fixtures.yaml
  livemark compile page.html --fixtures fixtures.yaml -o page.out.html
  livemark compile page.html --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fixtures, "fixtures", "", "fixtures YAML file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	src, err := os.ReadFile(path)
	if err != nil {
		return formatter.Fail(ErrCodeRead, "failed to read template", err)
	}

	fixtures := map[string]harness.Fixture{}
	if opts.Fixtures != "" {
		fixtures, err = loadFixtures(opts.Fixtures)
		if err != nil {
			return formatter.Fail(ErrCodeFixtures, "failed to load fixtures", err)
		}
	}
	formatter.VerboseLog("Compiling %s with %d fixture(s)", path, len(fixtures))

	hopts, err := opts.harnessOptions()
	if err != nil {
		return formatter.Fail(ErrCodeConfig, "invalid config", err)
	}
	markup, markers, err := harness.CompileTemplate(string(src), fixtures, hopts...)
	if err != nil {
		var details any
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			details = map[string]any{"slot": ce.Slot, "name": ce.Name}
		}
		_ = formatter.Error(ErrCodeCompile, err.Error(), details)
		return WrapExitError(ErrCodeCompile.ExitCode(), "compilation failed", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(markup), 0o644); err != nil {
			return formatter.Fail(ErrCodeGeneric, "failed to write output", err)
		}
		formatter.VerboseLog("Wrote %s", opts.Output)
	}

	if err := formatter.Success(CompilationResult{Markup: markup, Markers: markers, Output: opts.Output}); err != nil {
		return err
	}
	if opts.Format != "json" {
		writeMarkers(formatter.GetErrWriter(), markers, opts.Verbose)
	}
	return nil
}

// loadFixtures reads a fixtures file, rejecting unknown fields.
func loadFixtures(path string) (map[string]harness.Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	fixtures := map[string]harness.Fixture{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fixtures); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	return fixtures, nil
}

// writeMarkers lists the bindings per marker in verbose mode.
func writeMarkers(w io.Writer, markers map[string]any, verbose bool) {
	if !verbose {
		return
	}
	for _, m := range slices.Sorted(maps.Keys(markers)) {
		fmt.Fprintf(w, "%s: %v\n", m, markers[m])
	}
}
