package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new temporary store for testing.
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

// appendTestEvent stores an event with minimal required fields.
func appendTestEvent(t *testing.T, s *Store, domain, eventID string, ts int64) int64 {
	t.Helper()
	seq, err := s.Append(context.Background(), Record{
		Domain:    domain,
		EventID:   eventID,
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	return seq
}
