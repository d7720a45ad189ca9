package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/specialize/internal/dispatch"
)

// ReadRun returns the run with the given id.
// Returns sql.ErrNoRows (wrapped) if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, engine_version, ir_version, max_active
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Scenario, &run.EngineVersion, &run.IRVersion, &run.MaxActive)
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run ordered by id.
// UUIDv7 run ids sort by creation time.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, engine_version, ir_version, max_active
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Scenario, &run.EngineVersion, &run.IRVersion, &run.MaxActive); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadNodes returns the nodes of a run in creation order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadNodes(ctx context.Context, runID string) ([]NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, id, kind, kind_hash, seq
		FROM nodes
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := []NodeRecord{}
	for rows.Next() {
		var n NodeRecord
		if err := rows.Scan(&n.RunID, &n.ID, &n.Kind, &n.KindHash, &n.Seq); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

// ReadCalls returns the calls of a run in seq order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadCalls(ctx context.Context, runID string) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, node_id, call, args, args_hash, seq
		FROM calls
		WHERE run_id = ?
		ORDER BY seq ASC, node_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []CallRecord{}
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

func scanCall(rows *sql.Rows) (CallRecord, error) {
	var (
		c        CallRecord
		argsJSON string
	)
	if err := rows.Scan(&c.RunID, &c.NodeID, &c.Call, &argsJSON, &c.ArgsHash, &c.Seq); err != nil {
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return CallRecord{}, fmt.Errorf("call %s/%d: %w", c.NodeID, c.Call, err)
	}
	c.Args = args
	return c, nil
}

// ReadEvents returns the events of a run in seq order. A non-empty nodeID
// restricts the result to that node.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadEvents(ctx context.Context, runID, nodeID string) ([]dispatch.Event, error) {
	query := `
		SELECT seq, node_id, call, kind, phase, specialization, guard, passed, detail
		FROM events
		WHERE run_id = ?`
	args := []any{runID}
	if nodeID != "" {
		query += ` AND node_id = ?`
		args = append(args, nodeID)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []dispatch.Event{}
	for rows.Next() {
		var (
			e      dispatch.Event
			kind   string
			phase  string
			passed int
		)
		if err := rows.Scan(&e.Seq, &e.Node, &e.Call, &kind, &phase, &e.Specialization, &e.Guard, &passed, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = dispatch.EventKind(kind)
		e.Phase = dispatch.Phase(phase)
		e.Passed = passed != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastSeq returns the highest event seq of a run, or 0 for an empty run.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM events WHERE run_id = ?
			UNION ALL SELECT seq FROM calls WHERE run_id = ?
			UNION ALL SELECT seq FROM nodes WHERE run_id = ?
		)
	`, runID, runID, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
