package store

import (
	"context"
	"fmt"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, engine_version, ir_version, max_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.EngineVersion, run.IRVersion, run.MaxActive)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteNode inserts a node record. The run must exist.
func (s *Store) WriteNode(ctx context.Context, node NodeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (run_id, id, kind, kind_hash, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`, node.RunID, node.ID, node.Kind, node.KindHash, node.Seq)
	if err != nil {
		return fmt.Errorf("write node: %w", err)
	}
	return nil
}

// WriteCall inserts a call record. The node must exist.
//
// Args are serialized to canonical tagged JSON; ArgsHash is computed here
// when the caller left it empty.
func (s *Store) WriteCall(ctx context.Context, call CallRecord) error {
	argsJSON, err := marshalArgs(call.Args)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	if call.ArgsHash == "" {
		call.ArgsHash, err = ir.ArgsHash(call.Args)
		if err != nil {
			return fmt.Errorf("write call: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls (run_id, node_id, call, args, args_hash, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, node_id, call) DO NOTHING
	`, call.RunID, call.NodeID, call.Call, argsJSON, call.ArgsHash, call.Seq)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// WriteEvent appends one dispatch event to a run.
// Event seqs are unique within a run; a duplicate seq is ignored.
func (s *Store) WriteEvent(ctx context.Context, runID string, e dispatch.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, node_id, call, kind, phase, specialization, guard, passed, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		e.Seq,
		e.Node,
		e.Call,
		string(e.Kind),
		string(e.Phase),
		e.Specialization,
		e.Guard,
		boolToInt(e.Passed),
		e.Detail,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// EventRecorder is a dispatch.Recorder that appends events to a run.
//
// Record cannot return an error, so the first write failure is kept and
// every later event is dropped. Check Err after the run.
type EventRecorder struct {
	store *Store
	ctx   context.Context
	runID string
	err   error
}

// Recorder returns a recorder writing into runID.
func (s *Store) Recorder(ctx context.Context, runID string) *EventRecorder {
	return &EventRecorder{store: s, ctx: ctx, runID: runID}
}

// Record implements dispatch.Recorder.
func (r *EventRecorder) Record(e dispatch.Event) {
	if r.err != nil {
		return
	}
	r.err = r.store.WriteEvent(r.ctx, r.runID, e)
}

// Err returns the first write failure.
func (r *EventRecorder) Err() error {
	return r.err
}

var _ dispatch.Recorder = (*EventRecorder)(nil)
