package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/livemark/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Kind     string // optional - filter to one event kind
}

// TraceEvent is one entry of a session timeline.
type TraceEvent struct {
	Seq    int64          `json:"seq"`
	Kind   string         `json:"kind"`
	Marker string         `json:"marker,omitempty"`
	NodeID uint64         `json:"node_id"`
	Detail map[string]any `json:"detail,omitempty"`
}

// SessionInfo describes one recorded session.
type SessionInfo struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	StartedSeq int64  `json:"started_seq"`
}

// SessionList is the recorded sessions of a database.
type SessionList []SessionInfo

// RenderText prints one session per line.
func (l SessionList) RenderText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	fmt.Fprintln(w, "=== Sessions ===")
	for _, s := range l {
		fmt.Fprintf(w, "  %s", s.ID)
		if s.Label != "" {
			fmt.Fprintf(w, "  %s", s.Label)
		}
		fmt.Fprintln(w)
	}
}

// TraceResult holds the timeline of one session.
type TraceResult struct {
	Session  string         `json:"session"`
	Timeline []TraceEvent   `json:"timeline"`
	Counts   map[string]int `json:"counts"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded trace",
		Long: `Inspect the diagnostics trace written by the binding engine.

Without --session, lists the sessions recorded in the database. With
--session, prints that session's timeline (bind, dispose, error, orphan,
complete and mount events in order) and a count per kind.

Examples:
  livemark trace --db ./livemark.db
  livemark trace --db ./livemark.db --session 0190f7a2-...
  livemark trace --db ./livemark.db --session 0190f7a2-... --kind error
  livemark trace --db ./livemark.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	db := opts.Database
	if db == "" && opts.Config != nil {
		db = opts.Config.Trace.Database
	}
	if db == "" {
		return formatter.Fail(ErrCodeDatabase, "no trace database: pass --db or set trace.database", nil)
	}

	st, err := store.Open(db)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, "failed to open database", err)
	}
	defer st.Close()

	sessions, err := st.Sessions(ctx)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, "failed to read sessions", err)
	}
	if opts.Session == "" {
		list := make(SessionList, len(sessions))
		for i, s := range sessions {
			list[i] = SessionInfo{ID: s.ID, Label: s.Label, StartedSeq: s.StartedSeq}
		}
		return formatter.Success(list)
	}
	if !slices.ContainsFunc(sessions, func(s store.Session) bool { return s.ID == opts.Session }) {
		return formatter.Fail(ErrCodeNoSession, fmt.Sprintf("session not found: %s", opts.Session), nil)
	}
	formatter.TraceID = opts.Session

	var events []store.Event
	if opts.Kind != "" {
		events, err = st.ReadEventsByKind(ctx, opts.Session, opts.Kind)
	} else {
		events, err = st.ReadEvents(ctx, opts.Session)
	}
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, "failed to read events", err)
	}
	counts, err := st.CountByKind(ctx, opts.Session)
	if err != nil {
		return formatter.Fail(ErrCodeDatabase, "failed to count events", err)
	}

	return formatter.Success(TraceResult{
		Session:  opts.Session,
		Timeline: buildTimeline(events),
		Counts:   counts,
	})
}

// buildTimeline converts store events to timeline entries.
func buildTimeline(events []store.Event) []TraceEvent {
	timeline := make([]TraceEvent, len(events))
	for i, ev := range events {
		timeline[i] = TraceEvent{
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Marker: ev.Marker,
			NodeID: ev.NodeID,
			Detail: ev.Detail,
		}
	}
	return timeline
}

// RenderText prints the timeline followed by the count per kind.
func (r TraceResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Trace for Session: %s\n\n", r.Session)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(r.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range r.Timeline {
		writeEvent(w, ev.Seq, ev.Kind, ev.Marker, ev.NodeID, ev.Detail)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Counts ===")
	for _, kind := range slices.Sorted(maps.Keys(r.Counts)) {
		fmt.Fprintf(w, "  %-9s %d\n", kind+":", r.Counts[kind])
	}
}

// writeEvent prints one trace line.
func writeEvent(w io.Writer, seq int64, kind, marker string, node uint64, detail map[string]any) {
	fmt.Fprintf(w, "  [%d] %s", seq, strings.ToUpper(kind))
	if marker != "" {
		fmt.Fprintf(w, " %s", marker)
	}
	fmt.Fprintf(w, " node=%d", node)
	if len(detail) > 0 {
		fmt.Fprintf(w, " %s", formatDetail(detail))
	}
	fmt.Fprintln(w)
}

// formatDetail formats a detail map with sorted keys so output is
// deterministic.
func formatDetail(detail map[string]any) string {
	parts := make([]string, 0, len(detail))
	for _, k := range slices.Sorted(maps.Keys(detail)) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(detail[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value, handling nested structures
// deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]any:
		return formatDetail(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
