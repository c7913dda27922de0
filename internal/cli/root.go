package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/livemark/internal/config"
	"github.com/roach88/livemark/internal/harness"
	"github.com/roach88/livemark/internal/scheduler"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Config and Logger are set before any subcommand runs.
	Config *config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the livemark CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "livemark",
		Short: "livemark - reactive markup engine",
		Long: `Compile templates into marker-annotated markup, bind them to live
sources and sinks, and inspect what the binding engine did.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to livemark.yaml")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// load reads the configuration file, if any, and builds the logger.
// Diagnostics go to stderr so JSON output stays parseable.
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.Config = cfg
	o.Logger = cfg.Log.NewLogger(cmd.ErrOrStderr())
	return nil
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
		Logger:    o.Logger,
	}
}

// harnessOptions maps the configuration onto harness options.
func (o *RootOptions) harnessOptions() ([]harness.Option, error) {
	cfg := o.Config
	if cfg == nil {
		cfg = config.Default()
	}
	opts := []harness.Option{
		harness.WithMarkerPrefix(cfg.MarkerPrefix),
		harness.WithNonBubbling(cfg.NonBubbling),
	}
	if o.Logger != nil && o.Verbose {
		opts = append(opts, harness.WithLogger(o.Logger))
	}
	settings, err := cfg.Scheduler.Settings()
	if err != nil {
		return nil, err
	}
	if settings.Strategy != scheduler.StrategyNone {
		opts = append(opts, harness.WithScheduler(settings))
	}
	return opts, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
