package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specialize/internal/store"
)

func TestRunMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		testSpecsDir, filepath.Join(testScenariosDir, "scenario_a_fallback.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunNonExistentSpecsDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "/nonexistent/specs", filepath.Join(testScenariosDir, "scenario_a_fallback.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "specs directory not found")
}

func TestRunMissingScenario(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, testSpecsDir, "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")
}

func TestRunRecordsTrace(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "run-a",
		testSpecsDir, filepath.Join(testScenariosDir, "scenario_a_fallback.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scenario_a_fallback")
	assert.Contains(t, out, "run: run-a")
	assert.Contains(t, out, `node-1#1  "(int)"`)
	assert.Contains(t, out, `node-1#2  "(fallback)"`)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "scenario_a_fallback", run.Scenario)

	calls, err := st.ReadCalls(ctx, "run-a")
	require.NoError(t, err)
	assert.Len(t, calls, 2)

	events, err := st.ReadEvents(ctx, "run-a", "")
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}

func TestRunGeneratesUUIDv7RunID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, testSpecsDir, filepath.Join(testScenariosDir, "scenario_c_rewrite.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		RunID  string    `json:"run_id"`
		Data   RunOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, resp.RunID, resp.Data.RunID)

	id, err := uuid.Parse(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	require.Len(t, resp.Data.Nodes, 1)
	assert.Equal(t, []string{"wide"}, resp.Data.Nodes[0].Stats.Chain)
	assert.Equal(t, []string{"narrow"}, resp.Data.Nodes[0].Stats.Excluded)
}

func TestRunCustomRunIDGenerator(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		NewRunID:    func() string { return "fixed-run" },
	}
	cmd := NewRunCommand(opts.RootOptions)
	cmd.SetContext(context.Background())

	err := runScenarioCommand(opts, testSpecsDir, filepath.Join(testScenariosDir, "scenario_d_guard_counts.yaml"), cmd)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	_, err = st.ReadRun(context.Background(), "fixed-run")
	assert.NoError(t, err)
}

func TestRunRejectsDuplicateRunID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "dup", "scenario_a_fallback.yaml")

	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "dup",
		testSpecsDir, filepath.Join(testScenariosDir, "scenario_a_fallback.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already recorded")
}

func TestRunFailingScenarioExitsOne(t *testing.T) {
	dir := t.TempDir()
	specsDir := filepath.Join(dir, "specs")
	writeFile(t, specsDir, "flip.cue", flipSpec)
	scenario := writeFile(t, dir, "wrong.yaml", `
name: wrong_expectation
specs: [flip.cue]
node: Flip
steps:
  - call: [{int: 3}]
    expect:
      result: {int: 3}
`)

	out, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", filepath.Join(dir, "trace.db"), specsDir, scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "result = int(-3), want int(3)")
}

func TestRunVerboseLogsToStderr(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, errOut, err := execute(t, NewRunCommand(&RootOptions{Format: "text", Verbose: true}),
		"--db", dbPath, testSpecsDir, filepath.Join(testScenariosDir, "scenario_c_rewrite.yaml"))
	require.NoError(t, err)
	assert.Contains(t, errOut, "scenario started")
	assert.Contains(t, errOut, "specialization rewritten")
	assert.Contains(t, errOut, "level=DEBUG")
}
