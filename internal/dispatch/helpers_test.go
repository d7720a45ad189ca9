package dispatch

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/specialize/internal/ir"
)

var (
	errOverflow = errors.New("integer overflow")
	errFallback = errors.New("fallback failed")
)

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func constant(s string) Impl {
	return func(ir.Args) (ir.Value, error) { return ir.String(s), nil }
}

func hasType(t ir.TypeName) func(ir.Args) bool {
	return func(args ir.Args) bool { return args[0].Type() == t }
}

// addExact doubles a 32-bit int and reports overflow instead of wrapping.
func addExact(args ir.Args) (ir.Value, error) {
	a := int64(args[0].(ir.Int))
	sum := a + a
	if sum > math.MaxInt32 || sum < math.MinInt32 {
		return nil, errOverflow
	}
	return ir.Int(sum), nil
}

func addWidened(args ir.Args) (ir.Value, error) {
	a := int64(args[0].(ir.Int))
	return ir.Long(a + a), nil
}

func mustSet(t *testing.T, kind string, specs []Specialization, fallback *Fallback, opts ...SetOption) *SpecializationSet {
	t.Helper()
	set, err := NewSet(kind, 1, specs, fallback, opts...)
	require.NoError(t, err)
	return set
}

func newTestNode(set *SpecializationSet, opts ...NodeOption) *Node {
	return NewNode(set, append([]NodeOption{WithLogger(discardLogger())}, opts...)...)
}

// guardedSet is the two-guard kind used by the guard counting tests:
// S0 guarded by is-integer, S1 by is-string, plus a fallback.
func guardedSet(t *testing.T) *SpecializationSet {
	t.Helper()
	return mustSet(t, "Guarded", []Specialization{
		{Name: "s0", Guards: []Guard{{Name: "is-integer", Test: hasType(ir.TypeInt)}}, Impl: constant("(int)")},
		{Name: "s1", Guards: []Guard{{Name: "is-string", Test: hasType(ir.TypeString)}}, Impl: constant("(string)")},
	}, &Fallback{Name: "generic", Impl: constant("(fallback)")})
}

// overflowSet is the rewrite pair: narrow add that deoptimizes on overflow,
// then a widened add.
func overflowSet(t *testing.T, fallback *Fallback) *SpecializationSet {
	t.Helper()
	return mustSet(t, "Doubler", []Specialization{
		{Name: "narrow", Accepts: []ir.TypeName{ir.TypeInt}, Impl: addExact, RewriteOn: []error{errOverflow}},
		{Name: "wide", Accepts: []ir.TypeName{ir.TypeInt}, Impl: addWidened},
	}, fallback)
}
