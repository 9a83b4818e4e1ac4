package store

import (
	"path/filepath"
	"strconv"
	"testing"
)

// createTestStore opens a fresh archive in a temp dir.
func createTestStore(t *testing.T) *SQLiteArchive {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry builds an entry for run with the given validity.
func createTestEntry(path string, run uint32, from, until int64, payload string) Entry {
	return Entry{
		Path:       path,
		ValidFrom:  from,
		ValidUntil: until,
		Metadata:   map[string]string{MetaRunNumber: strconv.FormatUint(uint64(run), 10)},
		Payload:    []byte(payload),
	}
}
