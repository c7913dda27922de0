package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore opens a fresh file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session and returns its ID.
func createTestSession(t *testing.T, s *Store, id string) string {
	t.Helper()
	if err := s.WriteSession(context.Background(), Session{ID: id, Label: "test"}); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return id
}
