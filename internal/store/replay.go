package store

import (
	"context"
	"fmt"
	"sort"
)

// StepType distinguishes timeline entries.
type StepType int

const (
	StepNode StepType = iota // a node was created
	StepCall                 // a call was made against a node
)

// String returns the string representation of StepType.
func (t StepType) String() string {
	switch t {
	case StepNode:
		return "node"
	case StepCall:
		return "call"
	default:
		return fmt.Sprintf("StepType(%d)", t)
	}
}

// Step is one entry of a run's input timeline.
// Exactly one of Node and Call is set, matching Type.
type Step struct {
	Type StepType
	Seq  int64
	Node *NodeRecord
	Call *CallRecord
}

// Timeline returns node creations and calls of a run merged in seq order.
// Feeding the steps to fresh nodes reproduces the run.
func (s *Store) Timeline(ctx context.Context, runID string) ([]Step, error) {
	nodes, err := s.ReadNodes(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}
	calls, err := s.ReadCalls(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}

	steps := make([]Step, 0, len(nodes)+len(calls))
	for i := range nodes {
		steps = append(steps, Step{Type: StepNode, Seq: nodes[i].Seq, Node: &nodes[i]})
	}
	for i := range calls {
		steps = append(steps, Step{Type: StepCall, Seq: calls[i].Seq, Call: &calls[i]})
	}
	sortSteps(steps)
	return steps, nil
}

// sortSteps orders by seq; a node creation sorts before a call sharing its seq.
func sortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Seq != steps[j].Seq {
			return steps[i].Seq < steps[j].Seq
		}
		return steps[i].Type < steps[j].Type
	})
}
