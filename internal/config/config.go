// Package config loads livemark configuration from YAML files.
//
// A file is merged onto Default(), then the result is checked against the
// embedded CUE schema. Validation errors carry the offending field path and,
// when the value came from a file, its line.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/livemark/internal/compiler"
	"github.com/roach88/livemark/internal/ir"
	"github.com/roach88/livemark/internal/scheduler"
)

//go:embed schema.cue
var schemaSource []byte

// Config is the complete configuration.
type Config struct {
	MarkerPrefix string    `yaml:"marker_prefix" json:"marker_prefix"`
	NonBubbling  []string  `yaml:"non_bubbling" json:"non_bubbling"`
	Scheduler    Scheduler `yaml:"scheduler" json:"scheduler"`
	Trace        Trace     `yaml:"trace" json:"trace"`
	Log          Log       `yaml:"log" json:"log"`

	// file and doc locate validation errors in the loaded file.
	file string
	doc  *yaml.Node
}

// Scheduler selects the rendering scheduler.
type Scheduler struct {
	Strategy    string  `yaml:"strategy" json:"strategy"`
	FrameBudget string  `yaml:"frame_budget" json:"frame_budget"`
	Smoothing   float64 `yaml:"smoothing" json:"smoothing"`
}

// Trace configures the diagnostics trace store.
type Trace struct {
	// Database is the SQLite path. Empty disables tracing.
	Database string `yaml:"database" json:"database"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MarkerPrefix: ir.DefaultMarkerPrefix,
		NonBubbling:  slices.Clone(compiler.DefaultNonBubbling),
		Scheduler: Scheduler{
			Strategy:    scheduler.StrategyNone,
			FrameBudget: scheduler.DefaultFrameBudget.String(),
			Smoothing:   0.2,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse merges YAML data onto Default and validates the result. filename
// only labels errors.
func Parse(data []byte, filename string) (*Config, error) {
	cfg := Default()
	cfg.file = filename

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	cfg.doc = &doc

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Issue is one schema violation.
type Issue struct {
	Path    string
	Message string
	Line    int // 0 when unknown
}

// ValidationError lists every schema violation of a configuration.
type ValidationError struct {
	File   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	for i, is := range e.Issues {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case e.File != "" && is.Line > 0:
			fmt.Fprintf(&b, "%s:%d: ", e.File, is.Line)
		case e.File != "":
			fmt.Fprintf(&b, "%s: ", e.File)
		}
		if is.Path != "" {
			b.WriteString(is.Path + ": ")
		}
		b.WriteString(is.Message)
	}
	return b.String()
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return c.formatCUEError(err)
	}

	// The schema only checks the duration's shape.
	if _, err := time.ParseDuration(c.Scheduler.FrameBudget); err != nil {
		return &ValidationError{File: c.file, Issues: []Issue{{
			Path:    "scheduler.frame_budget",
			Message: err.Error(),
			Line:    c.line([]string{"scheduler", "frame_budget"}),
		}}}
	}
	return nil
}

// formatCUEError turns CUE errors into issues located in the YAML file.
func (c *Config) formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	out := &ValidationError{File: c.file}
	seen := make(map[string]bool)
	for _, e := range errs {
		path := slices.DeleteFunc(slices.Clone(e.Path()), func(s string) bool {
			return strings.HasPrefix(s, "#")
		})
		format, args := e.Msg()
		is := Issue{
			Path:    strings.Join(path, "."),
			Message: fmt.Sprintf(format, args...),
			Line:    c.line(path),
		}
		key := is.Path + "\x00" + is.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Issues = append(out.Issues, is)
	}
	return out
}

// line finds the line of the YAML value at path, or 0.
func (c *Config) line(path []string) int {
	if c.doc == nil || len(c.doc.Content) == 0 {
		return 0
	}
	n := c.doc.Content[0]
	for _, sel := range path {
		n = child(n, sel)
		if n == nil {
			return 0
		}
	}
	return n.Line
}

func child(n *yaml.Node, sel string) *yaml.Node {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == sel {
				return n.Content[i+1]
			}
		}
	case yaml.SequenceNode:
		if i, err := strconv.Atoi(sel); err == nil && i >= 0 && i < len(n.Content) {
			return n.Content[i]
		}
	}
	return nil
}

// Settings converts the scheduler section for scheduler.New.
func (s Scheduler) Settings() (scheduler.Settings, error) {
	budget, err := time.ParseDuration(s.FrameBudget)
	if err != nil {
		return scheduler.Settings{}, fmt.Errorf("scheduler.frame_budget: %w", err)
	}
	return scheduler.Settings{Strategy: s.Strategy, Budget: budget, Smoothing: s.Smoothing}, nil
}

// SlogLevel returns the slog level named by l.Level. Unknown names mean info.
func (l Log) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w in the configured format.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
