package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/specialize/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
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

// createTestRun writes a run plus one node and returns the run id.
func createTestRun(t *testing.T, s *Store, runID, nodeID string) {
	t.Helper()
	ctx := context.Background()
	if err := s.WriteRun(ctx, Run{
		ID:            runID,
		Scenario:      "test",
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		MaxActive:     8,
	}); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
	if nodeID == "" {
		return
	}
	if err := s.WriteNode(ctx, NodeRecord{RunID: runID, ID: nodeID, Kind: "Add", KindHash: "kind-hash", Seq: 1}); err != nil {
		t.Fatalf("WriteNode() failed: %v", err)
	}
}
