package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/store"
)

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--run", "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestTraceListsRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-a", "scenario_a_fallback.yaml")
	recordRun(t, dbPath, "run-c", "scenario_c_rewrite.yaml")

	out, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a  scenario_a_fallback")
	assert.Contains(t, out, "run-c  scenario_c_rewrite")
}

func TestTraceEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTraceUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestTraceText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-c", "scenario_c_rewrite.yaml")

	out, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--run", "run-c")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace for run: run-c")
	assert.Contains(t, out, "[1] NODE node-1 Doubler")
	assert.Contains(t, out, "[2] CALL node-1#1 (int(1))")
	assert.Contains(t, out, "node-1#2 rewrite narrow")
	assert.Contains(t, out, "Rewrites:  1")
	assert.Contains(t, out, "Calls:     3")
	// Guard events only show with --verbose; Doubler declares no guards
	// either way.
	assert.NotContains(t, out, " guard ")
}

func TestTraceJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-a", "scenario_a_fallback.yaml")

	out, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--run", "run-a")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		RunID  string      `json:"run_id"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-a", resp.RunID)
	assert.Equal(t, "scenario_a_fallback", resp.Data.Run.Scenario)
	assert.Equal(t, 1, resp.Data.Stats.Nodes)
	assert.Equal(t, 2, resp.Data.Stats.Calls)
	assert.Equal(t, 1, resp.Data.Stats.Installs)
	assert.Equal(t, 1, resp.Data.Stats.Fallbacks)

	for i := 1; i < len(resp.Data.Timeline); i++ {
		assert.Less(t, resp.Data.Timeline[i-1].Seq, resp.Data.Timeline[i].Seq)
	}
}

func TestTraceNodeFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-e", "scenario_e_installation.yaml")

	out, _, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-e", "--node", "node-2")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.Timeline)
	for _, entry := range resp.Data.Timeline {
		assert.Equal(t, "node-2", entry.Node)
	}
	assert.Equal(t, 1, resp.Data.Stats.Nodes)
}

func TestBuildTraceInterleavesCallsAndEvents(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	run := store.Run{ID: "r", Scenario: "manual", MaxActive: 8}
	require.NoError(t, st.WriteRun(ctx, run))
	require.NoError(t, st.WriteNode(ctx, store.NodeRecord{RunID: "r", ID: "n", Kind: "K", KindHash: "h", Seq: 1}))
	require.NoError(t, st.WriteCall(ctx, store.CallRecord{RunID: "r", NodeID: "n", Call: 1, Seq: 2}))
	require.NoError(t, st.WriteEvent(ctx, "r", dispatch.Event{Seq: 3, Node: "n", Call: 1, Kind: dispatch.EventCall}))
	require.NoError(t, st.WriteEvent(ctx, "r", dispatch.Event{Seq: 4, Node: "n", Call: 1, Kind: dispatch.EventMiss}))
	require.NoError(t, st.WriteEvent(ctx, "r", dispatch.Event{Seq: 5, Node: "n", Call: 1, Kind: dispatch.EventError, Detail: "unsupported"}))

	result, err := buildTrace(ctx, st, run, "")
	require.NoError(t, err)

	types := make([]string, len(result.Timeline))
	for i, e := range result.Timeline {
		types[i] = e.Type
	}
	assert.Equal(t, []string{"node", "call", "event", "event", "event"}, types)
	assert.Equal(t, TraceStats{Nodes: 1, Calls: 1, Events: 3, Misses: 1, Errors: 1}, result.Stats)
}
