package cli

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), testSpecsDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayMissingSpecsDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	_, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load specs")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	out, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, testSpecsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	_, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "missing", testSpecsDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestReplayRecordedRunsAreDeterministic(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-a", "scenario_a_fallback.yaml")
	recordRun(t, dbPath, "run-c", "scenario_c_rewrite.yaml")
	recordRun(t, dbPath, "run-e", "scenario_e_installation.yaml")

	out, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, testSpecsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ run-a (scenario_a_fallback): 1 node(s), 2 call(s)")
	assert.Contains(t, out, "✓ run-c (scenario_c_rewrite): 1 node(s), 3 call(s)")
	assert.Contains(t, out, "✓ run-e (scenario_e_installation): 2 node(s), 4 call(s)")
	assert.Contains(t, out, "✓ All 3 run(s) deterministic")
}

func TestReplaySingleRunJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-b", "scenario_b_unsupported.yaml")
	recordRun(t, dbPath, "run-d", "scenario_d_guard_counts.yaml")

	out, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--run", "run-d", testSpecsDir)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.TotalRuns)
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "run-d", resp.Data.Runs[0].RunID)
	assert.True(t, resp.Data.Runs[0].Deterministic)
	assert.Nil(t, resp.Data.Runs[0].Divergence)
	assert.Positive(t, resp.Data.Runs[0].Events)
}

func TestReplayReportsTruncatedTrace(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	recordRun(t, dbPath, "run-a", "scenario_a_fallback.yaml")

	// Drop the final recorded event: the replay produces one event more.
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM events WHERE run_id = ? AND seq = (SELECT MAX(seq) FROM events WHERE run_id = ?)`,
		"run-a", "run-a")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath, testSpecsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 run(s) did not reproduce their trace")
	assert.Contains(t, out, "✗ run-a (scenario_a_fallback): diverged at event")
	assert.Contains(t, out, "recorded: (end of trace)")
	assert.NotContains(t, out, "deterministic")
}

func TestReplayDetectsChangedDeclaration(t *testing.T) {
	dir := t.TempDir()
	specsDir := filepath.Join(dir, "specs")
	dbPath := filepath.Join(dir, "trace.db")
	writeFile(t, specsDir, "flip.cue", flipSpec)
	scenario := writeFile(t, dir, "flip.yaml", `
name: flip_once
specs: [flip.cue]
node: Flip
steps:
  - call: [{int: 3}]
    expect:
      result: {int: -3}
`)

	_, _, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--run", "flip-1", specsDir, scenario)
	require.NoError(t, err)

	// Same kind name, different fallback implementation.
	writeFile(t, specsDir, "flip.cue", strings.Replace(flipSpec, `impl: "identity"`, `impl: "negate"`, 1))

	out, _, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, specsDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_NONDETERMINISTIC", resp.Error.Code)
	require.Len(t, resp.Data.Runs, 1)
	assert.True(t, resp.Data.Runs[0].KindChanged)
	assert.False(t, resp.Data.Runs[0].Deterministic)
}
