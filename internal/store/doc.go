// Package store is the SQLite diagnostics log of the binding engine.
//
// Every bind, dispose, error, orphan, completion and mount the engine
// observes can be appended here as a trace event, grouped by session. The
// log is append-only and ordered by the engine's logical seq.
//
// # Tables
//
//   - sessions: one row per engine instance (UUIDv7 id)
//   - trace_events: UNIQUE(session_id, seq); detail is canonical JSON
//
// # Database Configuration
//
//   - WAL mode: readers (the CLI trace command) do not block the engine
//   - synchronous=NORMAL
//   - busy_timeout=5000ms
//   - foreign_keys=ON
//   - one open connection, so ":memory:" databases work in tests
package store
