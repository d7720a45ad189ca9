// Package builtins provides the named guards, implementations and rewrite
// error kinds that node-kind declarations can reference.
//
// GUARDS (all test the first argument unless noted):
//
//	is-int      32-bit int
//	is-long     64-bit long
//	is-string   string
//	is-bool     bool
//	not-int     anything but a 32-bit int
//	positive    int or long greater than zero
//	always      true, for counting reachability
//
// IMPLEMENTATIONS:
//
//	identity     returns the first argument
//	add-exact    sum of all int arguments in 32 bits; ErrOverflow on overflow
//	add-widened  sum of all int or long arguments as a long
//	negate       negated int or long
//	fail         always ErrFallback
//	two          the int 2, whatever the arguments
//
// ERROR KINDS:
//
//	overflow          ErrOverflow
//	fallback-failure  ErrFallback
package builtins

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/ir"
)

var (
	// ErrOverflow is raised by add-exact when the 32-bit sum overflows.
	ErrOverflow = errors.New("integer overflow")

	// ErrFallback is raised by fail.
	ErrFallback = errors.New("fallback failure")
)

// Library returns a fresh library holding every builtin. Callers may
// register more entries on it before binding.
func Library() *dispatch.Library {
	return dispatch.NewLibrary().
		Guard("is-int", firstIs(ir.TypeInt)).
		Guard("is-long", firstIs(ir.TypeLong)).
		Guard("is-string", firstIs(ir.TypeString)).
		Guard("is-bool", firstIs(ir.TypeBool)).
		Guard("not-int", func(args ir.Args) bool { return !firstIs(ir.TypeInt)(args) }).
		Guard("positive", positive).
		Guard("always", func(ir.Args) bool { return true }).
		Impl("identity", identity).
		Impl("add-exact", addExact).
		Impl("add-widened", addWidened).
		Impl("negate", negate).
		Impl("fail", fail).
		Impl("two", two).
		Kind("overflow", ErrOverflow).
		Kind("fallback-failure", ErrFallback)
}

func firstIs(t ir.TypeName) func(ir.Args) bool {
	return func(args ir.Args) bool {
		return len(args) > 0 && args[0] != nil && args[0].Type() == t
	}
}

func positive(args ir.Args) bool {
	if len(args) == 0 {
		return false
	}
	switch v := args[0].(type) {
	case ir.Int:
		return v > 0
	case ir.Long:
		return v > 0
	default:
		return false
	}
}

func identity(args ir.Args) (ir.Value, error) {
	if len(args) == 0 {
		return ir.Null{}, nil
	}
	return args[0], nil
}

func addExact(args ir.Args) (ir.Value, error) {
	var sum int64
	for i, a := range args {
		n, ok := a.(ir.Int)
		if !ok {
			return nil, fmt.Errorf("add-exact: argument %d is %s, not int", i, typeOf(a))
		}
		sum += int64(n)
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return nil, fmt.Errorf("add-exact %s: %w", args, ErrOverflow)
		}
	}
	if len(args) == 1 {
		// Unary form doubles, matching a+a.
		sum += sum
		if sum > math.MaxInt32 || sum < math.MinInt32 {
			return nil, fmt.Errorf("add-exact %s: %w", args, ErrOverflow)
		}
	}
	return ir.Int(sum), nil
}

func addWidened(args ir.Args) (ir.Value, error) {
	var sum int64
	for i, a := range args {
		switch n := a.(type) {
		case ir.Int:
			sum += int64(n)
		case ir.Long:
			sum += int64(n)
		default:
			return nil, fmt.Errorf("add-widened: argument %d is %s, not int or long", i, typeOf(a))
		}
	}
	if len(args) == 1 {
		sum += sum
	}
	return ir.Long(sum), nil
}

func negate(args ir.Args) (ir.Value, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("negate: no argument")
	}
	switch n := args[0].(type) {
	case ir.Int:
		if n == math.MinInt32 {
			return nil, fmt.Errorf("negate %s: %w", n, ErrOverflow)
		}
		return -n, nil
	case ir.Long:
		return -n, nil
	default:
		return nil, fmt.Errorf("negate: argument is %s, not int or long", typeOf(args[0]))
	}
}

func fail(args ir.Args) (ir.Value, error) {
	return nil, fmt.Errorf("fail %s: %w", args, ErrFallback)
}

func two(ir.Args) (ir.Value, error) {
	return ir.Int(2), nil
}

func typeOf(v ir.Value) string {
	if v == nil {
		return "nil"
	}
	return string(v.Type())
}
