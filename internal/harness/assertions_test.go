package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specialize/internal/dispatch"
)

// sampleTrace is the first two calls of the installation scenario.
func sampleTrace() []dispatch.Event {
	n := "node-1"
	return []dispatch.Event{
		{Seq: 3, Node: n, Call: 1, Kind: dispatch.EventCall, Detail: "(long(1))"},
		{Seq: 4, Node: n, Call: 1, Kind: dispatch.EventGuard, Phase: dispatch.PhaseDiscovery, Specialization: "s0", Guard: "is-int"},
		{Seq: 5, Node: n, Call: 1, Kind: dispatch.EventGuard, Phase: dispatch.PhaseDiscovery, Specialization: "s1", Guard: "is-string"},
		{Seq: 6, Node: n, Call: 1, Kind: dispatch.EventFallback, Specialization: "generic"},
		{Seq: 7, Node: n, Call: 1, Kind: dispatch.EventResult, Detail: `"generic"`},
		{Seq: 9, Node: n, Call: 2, Kind: dispatch.EventCall, Detail: "(int(1))"},
		{Seq: 10, Node: n, Call: 2, Kind: dispatch.EventGuard, Phase: dispatch.PhaseDiscovery, Specialization: "s0", Guard: "is-int", Passed: true},
		{Seq: 11, Node: n, Call: 2, Kind: dispatch.EventInstall, Specialization: "s0"},
		{Seq: 12, Node: n, Call: 2, Kind: dispatch.EventGuard, Phase: dispatch.PhaseConfirm, Specialization: "s0", Guard: "is-int", Passed: true},
		{Seq: 13, Node: n, Call: 2, Kind: dispatch.EventConfirm, Specialization: "s0", Passed: true},
		{Seq: 14, Node: n, Call: 2, Kind: dispatch.EventExecute, Phase: dispatch.PhaseDiscovery, Specialization: "s0"},
		{Seq: 15, Node: n, Call: 2, Kind: dispatch.EventResult, Detail: `"s0"`},
	}
}

func TestEventPattern_Matches(t *testing.T) {
	ev := sampleTrace()[8] // confirm-phase guard

	assert.True(t, EventPattern{}.Matches(ev))
	assert.True(t, EventPattern{Event: "guard", Phase: "confirm"}.Matches(ev))
	assert.True(t, EventPattern{Specialization: "s0", Guard: "is-int", Node: "node-1"}.Matches(ev))
	assert.False(t, EventPattern{Event: "guard", Phase: "active"}.Matches(ev))
	assert.False(t, EventPattern{Node: "node-2"}.Matches(ev))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{EventPattern: EventPattern{Event: "guard", Guard: "is-int"}, Count: 3}))
	assert.NoError(t, assertTraceCount(trace, Assertion{EventPattern: EventPattern{Event: "rewrite"}, Count: 0}))

	err := assertTraceCount(trace, Assertion{EventPattern: EventPattern{Event: "install"}, Count: 2})
	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "2 occurrences of install", aerr.Expected)
	assert.Equal(t, "1 occurrences", aerr.Actual)
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{EventPattern: EventPattern{Event: "fallback", Specialization: "generic"}}))

	err := assertTraceContains(trace, Assertion{EventPattern: EventPattern{Event: "miss"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Assertion failed: trace_contains")
	assert.Contains(t, err.Error(), "not found in trace")
	assert.Contains(t, err.Error(), "[13] node-1#2 confirm s0=true")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	install := EventPattern{Event: "install", Specialization: "s0"}
	fallback := EventPattern{Event: "fallback"}
	confirm := EventPattern{Event: "guard", Phase: "confirm"}

	assert.NoError(t, assertTraceOrder(trace, Assertion{Events: []EventPattern{fallback, install, confirm}}))

	err := assertTraceOrder(trace, Assertion{Events: []EventPattern{install, fallback}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback does not occur after install s0")

	err = assertTraceOrder(trace, Assertion{Events: []EventPattern{{Event: "miss"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing event: miss")
}

func TestAssertFinalState(t *testing.T) {
	result := NewResult("run-1")
	result.Nodes = []NodeState{
		{ID: "node-1", Stats: dispatch.Stats{Calls: 3, Chain: []string{"s0"}, Excluded: []string{}}},
		{ID: "node-2", Stats: dispatch.Stats{Calls: 1, Chain: []string{}, Excluded: []string{}}},
	}

	assert.NoError(t, assertFinalState(result, Assertion{Expect: &StateExpect{Calls: int64Ptr(1)}}), "defaults to the last node")
	assert.NoError(t, assertFinalState(result, Assertion{EventPattern: EventPattern{Node: "node-1"}, Expect: &StateExpect{Chain: &[]string{"s0"}}}))

	err := assertFinalState(result, Assertion{EventPattern: EventPattern{Node: "node-1"}, Expect: &StateExpect{Chain: &[]string{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain = [s0], want []")

	err = assertFinalState(result, Assertion{EventPattern: EventPattern{Node: "node-9"}, Expect: &StateExpect{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node not found")
}

func TestEvaluateAssertions_ReportsEveryFailure(t *testing.T) {
	result := NewResult("run-1")
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, EventPattern: EventPattern{Event: "install"}, Count: 1},
		{Type: AssertTraceCount, EventPattern: EventPattern{Event: "miss"}, Count: 1},
		{Type: AssertTraceContains, EventPattern: EventPattern{Event: "rewrite"}},
		{Type: AssertFinalState, Expect: &StateExpect{}},
	})

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "assertion 1:")
	assert.Contains(t, errs[1], "assertion 2:")
	assert.Contains(t, errs[2], "assertion 3:")
}
