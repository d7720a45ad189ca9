package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/ir"
	"github.com/roach88/specialize/internal/store"
)

// ErrKindChanged is returned by Replay when a node kind's declaration no
// longer hashes to the value recorded with the run.
var ErrKindChanged = errors.New("node kind declaration changed since recording")

// Divergence is the first position where a replayed trace differs from the
// recorded one. A nil side means that trace ended early.
type Divergence struct {
	Index    int             `json:"index"`
	Recorded *dispatch.Event `json:"recorded,omitempty"`
	Replayed *dispatch.Event `json:"replayed,omitempty"`
}

// ReplayResult reports a replay.
type ReplayResult struct {
	RunID      string      `json:"run_id"`
	Nodes      int         `json:"nodes"`
	Calls      int         `json:"calls"`
	Events     int         `json:"events"`
	Divergence *Divergence `json:"divergence,omitempty"`
}

// Identical reports whether the replayed trace matched the recording.
func (r *ReplayResult) Identical() bool { return r.Divergence == nil }

// Replay re-executes a recorded run on fresh nodes and compares the traces.
//
// Nodes are recreated with their recorded ids and one shared clock, and each
// node creation and call consumes a tick exactly as during recording, so an
// unchanged declaration and library reproduce the recorded seqs. Nothing
// from the recorded trace is loaded into the new nodes.
func Replay(ctx context.Context, st *store.Store, runID string, kinds []ir.NodeKind, lib *dispatch.Library, logger *slog.Logger) (*ReplayResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	steps, err := st.Timeline(ctx, runID)
	if err != nil {
		return nil, err
	}

	sets := make(map[string]*dispatch.SpecializationSet)
	nodes := make(map[string]*dispatch.Node)
	clock := dispatch.NewClock()
	buf := &dispatch.TraceBuffer{}
	result := &ReplayResult{RunID: runID}

	for _, step := range steps {
		switch step.Type {
		case store.StepNode:
			rec := step.Node
			set, ok := sets[rec.Kind]
			if !ok {
				set, err = bindRecorded(kinds, rec, lib)
				if err != nil {
					return nil, err
				}
				sets[rec.Kind] = set
			}
			if set.KindHash() != rec.KindHash {
				return nil, fmt.Errorf("node %s: kind %s: %w", rec.ID, rec.Kind, ErrKindChanged)
			}
			nodes[rec.ID] = dispatch.NewNode(set,
				dispatch.WithMaxActive(run.MaxActive),
				dispatch.WithLogger(logger),
				dispatch.WithRecorder(buf),
				dispatch.WithIDGenerator(dispatch.NewFixedGenerator(rec.ID)),
				dispatch.WithClock(clock),
			)
			clock.Next()
			result.Nodes++

		case store.StepCall:
			rec := step.Call
			n, ok := nodes[rec.NodeID]
			if !ok {
				return nil, fmt.Errorf("call %d references unknown node %s", rec.Call, rec.NodeID)
			}
			clock.Next()
			// Errors are part of the trace; the comparison below covers them.
			_, _ = n.Dispatch(rec.Args)
			result.Calls++
		}
	}

	recorded, err := st.ReadEvents(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	replayed := buf.Events()
	result.Events = len(replayed)

	div, err := compareTraces(recorded, replayed)
	if err != nil {
		return nil, err
	}
	result.Divergence = div

	if div != nil {
		logger.Warn("replay diverged", "run_id", runID, "index", div.Index)
	} else {
		logger.Info("replay identical", "run_id", runID, "events", len(replayed))
	}
	return result, nil
}

func bindRecorded(kinds []ir.NodeKind, rec *store.NodeRecord, lib *dispatch.Library) (*dispatch.SpecializationSet, error) {
	kind, err := findKind(kinds, rec.Kind)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", rec.ID, err)
	}
	return dispatch.Bind(kind, lib)
}

// compareTraces compares events by their canonical JSON form.
func compareTraces(recorded, replayed []dispatch.Event) (*Divergence, error) {
	for i := 0; i < len(recorded) || i < len(replayed); i++ {
		div := &Divergence{Index: i}
		if i < len(recorded) {
			div.Recorded = &recorded[i]
		}
		if i < len(replayed) {
			div.Replayed = &replayed[i]
		}
		if div.Recorded == nil || div.Replayed == nil {
			return div, nil
		}

		a, err := ir.MarshalCanonical(div.Recorded.Canonical())
		if err != nil {
			return nil, err
		}
		b, err := ir.MarshalCanonical(div.Replayed.Canonical())
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(a, b) {
			return div, nil
		}
	}
	return nil, nil
}
