package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/livemark/internal/ir"
)

// Trace event kinds written by the engine.
const (
	KindBind     = "bind"
	KindDispose  = "dispose"
	KindError    = "error"
	KindOrphan   = "orphan"
	KindComplete = "complete"
	KindMount    = "mount"
)

// Session identifies one engine instance's trace.
type Session struct {
	ID         string
	Label      string
	StartedSeq int64
}

// Event is one trace row.
type Event struct {
	SessionID string
	Seq       int64
	Kind      string
	Marker    string
	NodeID    uint64
	Detail    map[string]any
}

// WriteSession registers a session. Writing the same ID twice is a no-op.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, started_seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Label, sess.StartedSeq)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends ev. A duplicate (session, seq) is silently ignored.
// The session must have been written first.
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	detail, err := marshalDetail(ev.Detail)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trace_events (session_id, seq, kind, marker, node_id, detail)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`, ev.SessionID, ev.Seq, ev.Kind, ev.Marker, int64(ev.NodeID), detail)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// ReadEvents returns a session's events ordered by seq. An unknown session
// yields an empty slice.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, marker, node_id, detail
		FROM trace_events
		WHERE session_id = ?
		ORDER BY seq ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadEventsByKind returns a session's events of one kind, ordered by seq.
func (s *Store) ReadEventsByKind(ctx context.Context, sessionID, kind string) ([]Event, error) {
	all, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := []Event{}
	for _, ev := range all {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Sessions lists every session, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, started_seq
		FROM sessions
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Label, &sess.StartedSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CountByKind tallies a session's events per kind.
func (s *Store) CountByKind(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM trace_events
		WHERE session_id = ?
		GROUP BY kind
		ORDER BY kind ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var ev Event
	var nodeID int64
	var detail string
	if err := rows.Scan(&ev.SessionID, &ev.Seq, &ev.Kind, &ev.Marker, &nodeID, &detail); err != nil {
		return Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.NodeID = uint64(nodeID)
	d, err := unmarshalDetail(detail)
	if err != nil {
		return Event{}, fmt.Errorf("event %s/%d: %w", ev.SessionID, ev.Seq, err)
	}
	ev.Detail = d
	return ev, nil
}

// marshalDetail stores detail as canonical JSON so identical runs produce
// identical rows.
func marshalDetail(detail map[string]any) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

func unmarshalDetail(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return out, nil
}
