package harness

import (
	"fmt"
	"sort"

	"github.com/roach88/specialize/internal/ir"
)

// Arg is a value in scenario shorthand: a single-key map whose key is the
// type name.
//
//	{int: 42}  {long: 1}  {string: x}  {bool: true}
//	{opaque: UNKNOWN}  {"null": true}
//	{array: [{int: 1}]}  {record: {a: {int: 1}}}
//
// "object" is accepted as an alias for opaque. The null key must be quoted
// in YAML, since a bare null key decodes as an empty string.
type Arg map[string]any

// Value converts the shorthand into an ir.Value.
func (a Arg) Value() (ir.Value, error) {
	if len(a) != 1 {
		keys := make([]string, 0, len(a))
		for k := range a {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("tagged value needs exactly one type key, got %v", keys)
	}

	for key, raw := range a {
		switch key {
		case "null":
			return ir.Null{}, nil
		case "object":
			key = string(ir.TypeOpaque)
		case string(ir.TypeArray):
			items, ok := raw.([]any)
			if !ok {
				return nil, fmt.Errorf("array value has type %T", raw)
			}
			arr := make(ir.Array, len(items))
			for i, item := range items {
				elem, err := argFrom(item)
				if err != nil {
					return nil, fmt.Errorf("array[%d]: %w", i, err)
				}
				arr[i] = elem
			}
			return arr, nil
		case string(ir.TypeRecord):
			fields, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("record value has type %T", raw)
			}
			rec := make(ir.Record, len(fields))
			for k, item := range fields {
				elem, err := argFrom(item)
				if err != nil {
					return nil, fmt.Errorf("record[%q]: %w", k, err)
				}
				rec[k] = elem
			}
			return rec, nil
		}
		return ir.Untag(map[string]any{"type": key, "value": raw})
	}
	panic("unreachable")
}

func argFrom(raw any) (ir.Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tagged value must be a map, got %T", raw)
	}
	return Arg(m).Value()
}

// ArgOf renders a value in scenario shorthand.
func ArgOf(v ir.Value) Arg {
	switch val := v.(type) {
	case ir.Null, nil:
		return Arg{"null": true}
	case ir.Int:
		return Arg{"int": int64(val)}
	case ir.Long:
		return Arg{"long": int64(val)}
	case ir.String:
		return Arg{"string": string(val)}
	case ir.Bool:
		return Arg{"bool": bool(val)}
	case ir.Opaque:
		return Arg{"opaque": val.Label}
	case ir.Array:
		items := make([]any, len(val))
		for i, elem := range val {
			items[i] = map[string]any(ArgOf(elem))
		}
		return Arg{"array": items}
	case ir.Record:
		fields := make(map[string]any, len(val))
		for k, elem := range val {
			fields[k] = map[string]any(ArgOf(elem))
		}
		return Arg{"record": fields}
	default:
		panic(fmt.Sprintf("harness: unknown value type %T", v))
	}
}

// callArgs converts a step's call list.
func callArgs(call []Arg) (ir.Args, error) {
	args := make(ir.Args, len(call))
	for i, a := range call {
		v, err := a.Value()
		if err != nil {
			return nil, fmt.Errorf("call[%d]: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
