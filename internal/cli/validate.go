package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/livemark/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Config *config.Config    `json:"config,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// RenderText prints the verdict and every issue with its line.
func (r ValidationResult) RenderText(w io.Writer) {
	if r.Valid {
		fmt.Fprintln(w, "✓ Configuration valid")
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, is := range r.Errors {
		if is.Line > 0 {
			fmt.Fprintf(w, "line %d\n", is.Line)
		}
		if is.Path != "" {
			fmt.Fprintf(w, "  %s: %s\n\n", is.Path, is.Message)
		} else {
			fmt.Fprintf(w, "  %s\n\n", is.Message)
		}
	}
}

// ValidationIssue is one configuration problem.
type ValidationIssue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a livemark.yaml configuration file",
		Long: `Validate a configuration file against the configuration schema.

Reports every problem with its field path and line. Unknown fields,
unknown scheduler strategies, malformed marker prefixes and bad durations
are all rejected.

Examples:
  livemark validate ./livemark.yaml
  livemark validate ./livemark.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	formatter.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if !errors.As(err, &verr) {
			return formatter.Fail(ErrCodeConfig, "failed to load config", err)
		}
		issues := make([]ValidationIssue, len(verr.Issues))
		for i, is := range verr.Issues {
			issues[i] = ValidationIssue{Path: is.Path, Message: is.Message, Line: is.Line}
		}
		return formatter.Failure(ErrCodeInvalidConfig,
			fmt.Sprintf("validation failed with %d error(s)", len(issues)),
			ValidationResult{Valid: false, Errors: issues})
	}

	return formatter.Success(ValidationResult{Valid: true, Config: cfg})
}
