package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the argument and result values that flow
// through a dispatch node. Only the types declared in this file implement it.
//
// Int and Long are distinct on purpose: a 32-bit 1 and a 64-bit 1 are
// different values for type constraints and guards.
type Value interface {
	// Type reports the type name used by type constraints.
	Type() TypeName

	// String renders the value for diagnostics, e.g. int(42) or "abc".
	String() string

	irValue() // Sealed
}

// Args is the ordered list of argument values supplied to one call.
type Args []Value

// Null is the absent value.
type Null struct{}

func (Null) irValue() {}
func (Null) Type() TypeName { return TypeNull }
func (Null) String() string { return "null" }

// Int is a 32-bit signed integer.
type Int int32

func (Int) irValue() {}
func (Int) Type() TypeName { return TypeInt }
func (v Int) String() string { return "int(" + strconv.FormatInt(int64(v), 10) + ")" }

// Long is a 64-bit signed integer.
type Long int64

func (Long) irValue() {}
func (Long) Type() TypeName { return TypeLong }
func (v Long) String() string { return "long(" + strconv.FormatInt(int64(v), 10) + ")" }

// String is a text value.
type String string

func (String) irValue() {}
func (String) Type() TypeName { return TypeString }
func (v String) String() string { return strconv.Quote(string(v)) }

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}
func (Bool) Type() TypeName { return TypeBool }
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}
func (Array) Type() TypeName { return TypeArray }

func (v Array) String() string {
	parts := make([]string, len(v))
	for i, elem := range v {
		parts[i] = elem.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Record is a string-keyed map of values.
// Use SortedKeys for deterministic iteration.
type Record map[string]Value

func (Record) irValue() {}
func (Record) Type() TypeName { return TypeRecord }

func (v Record) String() string {
	keys := v.SortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + v[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Opaque stands for a host object the type system knows nothing about.
// Two opaque values are equal when their labels are equal.
type Opaque struct {
	Label string
}

func (Opaque) irValue() {}
func (Opaque) Type() TypeName { return TypeOpaque }
func (v Opaque) String() string { return "opaque(" + v.Label + ")" }

// String renders the argument list, e.g. (int(1), "a").
func (a Args) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		if v == nil {
			parts[i] = "<nil>"
			continue
		}
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Clone returns a snapshot of the argument list. Arrays and records are
// copied recursively, so later changes to the caller's containers do not
// show through.
func (a Args) Clone() Args {
	if a == nil {
		return Args{}
	}
	out := make(Args, len(a))
	for i, v := range a {
		out[i] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of v. Scalars are returned as is.
func CloneValue(v Value) Value {
	switch v := v.(type) {
	case Array:
		if v == nil {
			return v
		}
		out := make(Array, len(v))
		for i, e := range v {
			out[i] = CloneValue(e)
		}
		return out
	case Record:
		if v == nil {
			return v
		}
		out := make(Record, len(v))
		for k, e := range v {
			out[k] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two values have the same type and content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch av := a.(type) {
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Record:
		bv := b.(Record)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// FromGo converts a plain Go value into a Value.
//
// Go int and int64 become Int when they fit in 32 bits and Long otherwise;
// int32 always becomes Int. Floats are rejected.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int32:
		return Int(val), nil
	case int:
		return narrow(int64(val)), nil
	case int64:
		return narrow(val), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not supported: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		rec := make(Record, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = conv
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func narrow(n int64) Value {
	if n >= -1<<31 && n <= 1<<31-1 {
		return Int(n)
	}
	return Long(n)
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's string comparison uses UTF-8 bytes, which orders some keys differently.
func (v Record) SortedKeys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
