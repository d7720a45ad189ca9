package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/specialize/internal/builtins"
	"github.com/roach88/specialize/internal/compiler"
	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/ir"
	"github.com/roach88/specialize/internal/store"
)

// DefaultRunID is used when neither the scenario nor the options name a run.
const DefaultRunID = "run-1"

// Options configures a scenario run. The zero value runs against a fresh
// in-memory store with the builtin library and no logging.
type Options struct {
	// Store receives the trace. Nil means a throwaway in-memory store.
	Store *store.Store

	// RunID overrides the scenario's run id.
	RunID string

	// Library resolves guard, impl and error kind names.
	Library *dispatch.Library

	// Logger receives dispatch logs.
	Logger *slog.Logger
}

// Harness is the scenario execution engine.
// Node ids come from a sequence generator and every node shares one
// logical clock, so two runs of the same scenario record identical traces.
type Harness struct {
	store     *store.Store
	recorder  *store.EventRecorder
	set       *dispatch.SpecializationSet
	lib       *dispatch.Library
	clock     *dispatch.Clock
	ids       dispatch.IDGenerator
	logger    *slog.Logger
	runID     string
	maxActive int

	node  *dispatch.Node
	nodes []*dispatch.Node
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario, Options{})
}

// RunContext executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile the scenario's specs and bind the node kind under test
//  2. Write the run record
//  3. Create the first node, then execute steps in order
//  4. Read the trace back from the store
//  5. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// failed expectations are reported in Result.Errors.
func RunContext(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	lib := opts.Library
	if lib == nil {
		lib = builtins.Library()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	kind, set, err := LoadKind(scenario.Specs, scenario.Node, lib)
	if err != nil {
		return nil, err
	}

	st := opts.Store
	if st == nil {
		st, err = store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
	}

	runID := opts.RunID
	if runID == "" {
		runID = scenario.RunID
	}
	if runID == "" {
		runID = DefaultRunID
	}
	maxActive := scenario.MaxActive
	if maxActive == 0 {
		maxActive = dispatch.DefaultMaxActive
	}

	if err := st.WriteRun(ctx, store.Run{
		ID:            runID,
		Scenario:      scenario.Name,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		MaxActive:     maxActive,
	}); err != nil {
		return nil, err
	}

	h := &Harness{
		store:     st,
		recorder:  st.Recorder(ctx, runID),
		set:       set,
		lib:       lib,
		clock:     dispatch.NewClock(),
		ids:       dispatch.NewSequenceGenerator("node"),
		logger:    logger,
		runID:     runID,
		maxActive: maxActive,
	}

	logger.Info("scenario started",
		"scenario", scenario.Name,
		"run_id", runID,
		"kind", kind.Name,
		"specializations", set.Len())

	result := NewResult(runID)
	if err := h.newNode(ctx); err != nil {
		return nil, err
	}
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute step %d: %w", i, err)
		}
	}
	if err := h.recorder.Err(); err != nil {
		return nil, fmt.Errorf("record trace: %w", err)
	}

	trace, err := st.ReadEvents(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	result.Trace = trace
	for _, n := range h.nodes {
		result.Nodes = append(result.Nodes, NodeState{ID: n.ID(), Stats: n.Stats()})
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
		"errors", len(result.Errors))
	return result, nil
}

// LoadKind compiles specs, finds the named node kind, validates it and binds
// it against lib.
func LoadKind(specs []string, name string, lib *dispatch.Library) (*ir.NodeKind, *dispatch.SpecializationSet, error) {
	kinds, err := compiler.CompileFiles(specs...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	kind, err := findKind(kinds, name)
	if err != nil {
		return nil, nil, err
	}

	verrs := compiler.Validate(kind)
	verrs = append(verrs, compiler.ValidateBindings(kind, lib)...)
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, e := range verrs {
			msgs[i] = e.Error()
		}
		return nil, nil, fmt.Errorf("node kind %s is invalid: %s", name, strings.Join(msgs, "; "))
	}

	set, err := dispatch.Bind(kind, lib)
	if err != nil {
		return nil, nil, err
	}
	return kind, set, nil
}

func findKind(kinds []ir.NodeKind, name string) (*ir.NodeKind, error) {
	for i := range kinds {
		if kinds[i].Name == name {
			return &kinds[i], nil
		}
	}
	return nil, fmt.Errorf("node kind %q not declared in specs", name)
}

// newNode creates a node and records it. The node record takes the next
// clock tick so that replay can rebuild the same seq stream.
func (h *Harness) newNode(ctx context.Context) error {
	n := dispatch.NewNode(h.set,
		dispatch.WithMaxActive(h.maxActive),
		dispatch.WithLogger(h.logger),
		dispatch.WithRecorder(h.recorder),
		dispatch.WithIDGenerator(h.ids),
		dispatch.WithClock(h.clock),
	)
	if err := h.store.WriteNode(ctx, store.NodeRecord{
		RunID:    h.runID,
		ID:       n.ID(),
		Kind:     h.set.Kind(),
		KindHash: h.set.KindHash(),
		Seq:      h.clock.Next(),
	}); err != nil {
		return err
	}
	h.node = n
	h.nodes = append(h.nodes, n)
	return nil
}

// executeStep runs one step and validates its expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	if step.NewNode {
		return h.newNode(ctx)
	}

	args, err := callArgs(step.Call)
	if err != nil {
		return err
	}
	if len(args) != h.set.Arity() {
		return fmt.Errorf("%d arguments for arity %d", len(args), h.set.Arity())
	}

	call := h.node.Calls() + 1
	if err := h.store.WriteCall(ctx, store.CallRecord{
		RunID:  h.runID,
		NodeID: h.node.ID(),
		Call:   call,
		Args:   args,
		Seq:    h.clock.Next(),
	}); err != nil {
		return err
	}

	v, callErr := h.node.Dispatch(args)

	outcome := Outcome{Step: index, Node: h.node.ID(), Call: call}
	if callErr != nil {
		outcome.Error = callErr.Error()
	} else {
		outcome.Value = v.String()
	}
	result.Outcomes = append(result.Outcomes, outcome)

	if step.Expect != nil {
		for _, msg := range h.checkExpect(step.Expect, v, callErr) {
			result.AddError(fmt.Sprintf("step %d: %s", index, msg))
		}
	}
	return nil
}

// checkExpect compares a call outcome and the node state with the clause.
func (h *Harness) checkExpect(expect *ExpectClause, v ir.Value, callErr error) []string {
	var errs []string

	switch {
	case expect.Error != "":
		if callErr == nil {
			errs = append(errs, fmt.Sprintf("expected error %q, got result %s", expect.Error, v))
		} else if !h.errorMatches(expect.Error, callErr) {
			errs = append(errs, fmt.Sprintf("expected error %q, got %v", expect.Error, callErr))
		}
	case callErr != nil:
		errs = append(errs, fmt.Sprintf("unexpected error: %v", callErr))
	case expect.Result != nil:
		want, err := expect.Result.Value()
		if err != nil {
			errs = append(errs, fmt.Sprintf("expect.result: %v", err))
		} else if !ir.Equal(want, v) {
			errs = append(errs, fmt.Sprintf("result = %s, want %s", v, want))
		}
	}

	return append(errs, diffState(h.node.Stats(), &expect.StateExpect)...)
}

func (h *Harness) errorMatches(name string, err error) bool {
	switch name {
	case "unsupported":
		return dispatch.IsUnsupported(err)
	case "arity":
		return errors.Is(err, dispatch.ErrArity)
	}
	kind, ok := h.lib.ErrorKind(name)
	return ok && errors.Is(err, kind)
}
