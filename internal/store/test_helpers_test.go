package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/chord/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
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

// createTestRun builds a run record whose result hash matches its result.
func createTestRun(t *testing.T, id string, seq int64, kind ir.RunKind, target string, result ir.Value) ir.RunRecord {
	t.Helper()
	hash, err := ir.ResultHash(result)
	if err != nil {
		t.Fatalf("ResultHash() failed: %v", err)
	}
	return ir.RunRecord{
		ID:         id,
		Seq:        seq,
		Kind:       kind,
		Target:     target,
		DocHash:    "test-hash",
		Status:     ir.RunStatusOK,
		Result:     result,
		ResultHash: hash,
	}
}
