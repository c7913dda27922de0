package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	createTestSession(t, s1, "s1")
	require.NoError(t, s1.WriteEvent(ctx, Event{SessionID: "s1", Seq: 1, Kind: KindBind}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	events, err := s2.ReadEvents(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	createTestSession(t, s, "mem")
	require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "mem", Seq: 1, Kind: KindDispose}))
	events, err := s.ReadEvents(ctx, "mem")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWriteEvent_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess")

	in := Event{
		SessionID: "sess",
		Seq:       7,
		Kind:      KindError,
		Marker:    "lm+3",
		NodeID:    42,
		Detail:    map[string]any{"code": "SINK_ERROR", "message": "boom"},
	}
	require.NoError(t, s.WriteEvent(ctx, in))

	out, err := s.ReadEvents(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}

func TestWriteEvent_NilDetailReadsEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess")

	require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "sess", Seq: 1, Kind: KindBind}))
	out, err := s.ReadEvents(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out[0].Detail)
}

func TestWriteEvent_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess")

	require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "sess", Seq: 1, Kind: KindBind}))
	require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "sess", Seq: 1, Kind: KindDispose}))

	out, err := s.ReadEvents(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, KindBind, out[0].Kind)
}

func TestWriteEvent_UnknownSessionFails(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteEvent(context.Background(), Event{SessionID: "nope", Seq: 1, Kind: KindBind})
	assert.Error(t, err)
}

func TestWriteEvent_UnsupportedDetail(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "sess")
	err := s.WriteEvent(context.Background(), Event{
		SessionID: "sess", Seq: 1, Kind: KindBind,
		Detail: map[string]any{"bad": struct{}{}},
	})
	assert.Error(t, err)
}

func TestReadEvents_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess")
	createTestSession(t, s, "other")

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "sess", Seq: seq, Kind: KindBind}))
	}
	require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "other", Seq: 1, Kind: KindBind}))

	out, err := s.ReadEvents(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, ev := range out {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	empty, err := s.ReadEvents(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSessionsAndCounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "a")
	createTestSession(t, s, "b")
	createTestSession(t, s, "a")

	sessions, err := s.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)

	kinds := []string{KindBind, KindBind, KindDispose, KindError}
	for i, k := range kinds {
		require.NoError(t, s.WriteEvent(ctx, Event{SessionID: "a", Seq: int64(i + 1), Kind: k}))
	}
	counts, err := s.CountByKind(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{KindBind: 2, KindDispose: 1, KindError: 1}, counts)

	errs, err := s.ReadEventsByKind(ctx, "a", KindError)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, int64(4), errs[0].Seq)
}
