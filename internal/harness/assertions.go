package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/specialize/internal/dispatch"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Trace    []dispatch.Event // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, DescribeEvent(ev))
		}
	}

	return buf.String()
}

// DescribeEvent renders an event on one line, e.g. "node-1#2 guard confirm s0/is-int=true".
func DescribeEvent(ev dispatch.Event) string {
	parts := []string{fmt.Sprintf("%s#%d", ev.Node, ev.Call), string(ev.Kind)}
	if ev.Phase != "" {
		parts = append(parts, string(ev.Phase))
	}
	switch {
	case ev.Guard != "":
		parts = append(parts, fmt.Sprintf("%s/%s=%t", ev.Specialization, ev.Guard, ev.Passed))
	case ev.Kind == dispatch.EventConfirm:
		parts = append(parts, fmt.Sprintf("%s=%t", ev.Specialization, ev.Passed))
	case ev.Specialization != "":
		parts = append(parts, ev.Specialization)
	}
	if ev.Detail != "" {
		parts = append(parts, ev.Detail)
	}
	return strings.Join(parts, " ")
}

// Matches reports whether ev matches every non-empty field of p.
func (p EventPattern) Matches(ev dispatch.Event) bool {
	return (p.Event == "" || string(ev.Kind) == p.Event) &&
		(p.Specialization == "" || ev.Specialization == p.Specialization) &&
		(p.Guard == "" || ev.Guard == p.Guard) &&
		(p.Phase == "" || string(ev.Phase) == p.Phase) &&
		(p.Node == "" || ev.Node == p.Node)
}

// String renders the pattern for messages.
func (p EventPattern) String() string {
	parts := []string{p.Event}
	if p.Phase != "" {
		parts = append(parts, p.Phase)
	}
	if p.Specialization != "" {
		parts = append(parts, p.Specialization)
	}
	if p.Guard != "" {
		parts = append(parts, "guard="+p.Guard)
	}
	if p.Node != "" {
		parts = append(parts, "node="+p.Node)
	}
	return strings.Join(parts, " ")
}

func countMatches(trace []dispatch.Event, p EventPattern) int {
	n := 0
	for _, ev := range trace {
		if p.Matches(ev) {
			n++
		}
	}
	return n
}

// assertTraceContains checks that at least one event matches.
func assertTraceContains(trace []dispatch.Event, assertion Assertion) error {
	if countMatches(trace, assertion.EventPattern) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", assertion.EventPattern),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the patterns match events in the given order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []dispatch.Event, assertion Assertion) error {
	pos := 0
	for i, p := range assertion.Events {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if p.Matches(ev) {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("missing event: %s", p)
			if i > 0 && countMatches(trace, p) > 0 {
				actual = fmt.Sprintf("%s does not occur after %s", p, assertion.Events[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []dispatch.Event, assertion Assertion) error {
	count := countMatches(trace, assertion.EventPattern)
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.EventPattern),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a node's final stats.
func assertFinalState(result *Result, assertion Assertion) error {
	if len(result.Nodes) == 0 {
		return &AssertionError{Type: AssertFinalState, Expected: "at least one node", Actual: "no nodes"}
	}
	state := result.Nodes[len(result.Nodes)-1]
	if assertion.Node != "" {
		var ok bool
		if state, ok = result.Node(assertion.Node); !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("node %s", assertion.Node),
				Actual:   "node not found",
			}
		}
	}

	if diffs := diffState(state.Stats, assertion.Expect); len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("node %s state to match", state.ID),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

// diffState returns one message per mismatching field. Map entries are
// compared in sorted name order.
func diffState(st dispatch.Stats, want *StateExpect) []string {
	if want == nil {
		return nil
	}
	var diffs []string

	if want.Chain != nil && !slices.Equal(st.Chain, *want.Chain) {
		diffs = append(diffs, fmt.Sprintf("chain = %v, want %v", st.Chain, *want.Chain))
	}
	if want.Excluded != nil && !slices.Equal(st.Excluded, *want.Excluded) {
		diffs = append(diffs, fmt.Sprintf("excluded = %v, want %v", st.Excluded, *want.Excluded))
	}
	if want.Fallback != nil && st.Fallback != *want.Fallback {
		diffs = append(diffs, fmt.Sprintf("fallback = %d, want %d", st.Fallback, *want.Fallback))
	}
	if want.Calls != nil && st.Calls != *want.Calls {
		diffs = append(diffs, fmt.Sprintf("calls = %d, want %d", st.Calls, *want.Calls))
	}
	diffs = append(diffs, diffCounts("guard", st.Guards, want.Guards)...)
	diffs = append(diffs, diffCounts("executions", st.Executions, want.Executions)...)
	return diffs
}

func diffCounts(what string, got, want map[string]int64) []string {
	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	var diffs []string
	for _, name := range names {
		actual, ok := got[name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s %q is not declared", what, name))
			continue
		}
		if actual != want[name] {
			diffs = append(diffs, fmt.Sprintf("%s %s = %d, want %d", what, name, actual, want[name]))
		}
	}
	return diffs
}

// EvaluateAssertions runs all assertions and returns their error messages.
// Every assertion is evaluated, so one failure does not hide another.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
