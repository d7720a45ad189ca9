package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Tag converts a Value into its tagged JSON-ready form:
//
//	{"type": "int", "value": 42}
//	{"type": "opaque", "value": "UNKNOWN"}
//	{"type": "null"}
//
// Arrays and records tag their elements recursively.
func Tag(v Value) map[string]any {
	switch val := v.(type) {
	case Null, nil:
		return map[string]any{"type": string(TypeNull)}
	case Int:
		return map[string]any{"type": string(TypeInt), "value": int64(val)}
	case Long:
		return map[string]any{"type": string(TypeLong), "value": int64(val)}
	case String:
		return map[string]any{"type": string(TypeString), "value": string(val)}
	case Bool:
		return map[string]any{"type": string(TypeBool), "value": bool(val)}
	case Opaque:
		return map[string]any{"type": string(TypeOpaque), "value": val.Label}
	case Array:
		items := make([]any, len(val))
		for i, elem := range val {
			items[i] = Tag(elem)
		}
		return map[string]any{"type": string(TypeArray), "value": items}
	case Record:
		fields := make(map[string]any, len(val))
		for k, elem := range val {
			fields[k] = Tag(elem)
		}
		return map[string]any{"type": string(TypeRecord), "value": fields}
	default:
		panic(fmt.Sprintf("ir: unknown value type %T", v))
	}
}

// TagArgs tags every argument.
func TagArgs(args Args) []any {
	out := make([]any, len(args))
	for i, v := range args {
		out[i] = Tag(v)
	}
	return out
}

// Untag is the inverse of Tag. It accepts the output of Tag as well as the
// generic form produced by decoding JSON or YAML (json.Number, int, float64
// holding an integral value).
func Untag(raw any) (Value, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tagged value must be an object, got %T", raw)
	}
	typ, ok := m["type"].(string)
	if !ok {
		return nil, fmt.Errorf("tagged value is missing its type")
	}
	val, hasValue := m["value"]
	if !hasValue && TypeName(typ) != TypeNull {
		return nil, fmt.Errorf("tagged %s value is missing its value", typ)
	}

	switch TypeName(typ) {
	case TypeNull:
		return Null{}, nil
	case TypeInt:
		n, err := integer(val)
		if err != nil {
			return nil, err
		}
		if n < -1<<31 || n > 1<<31-1 {
			return nil, fmt.Errorf("int value out of 32-bit range: %d", n)
		}
		return Int(n), nil
	case TypeLong:
		n, err := integer(val)
		if err != nil {
			return nil, err
		}
		return Long(n), nil
	case TypeString:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("string value has type %T", val)
		}
		return String(s), nil
	case TypeBool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("bool value has type %T", val)
		}
		return Bool(b), nil
	case TypeOpaque:
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("opaque label has type %T", val)
		}
		return Opaque{Label: s}, nil
	case TypeArray:
		items, ok := val.([]any)
		if !ok {
			return nil, fmt.Errorf("array value has type %T", val)
		}
		arr := make(Array, len(items))
		for i, item := range items {
			elem, err := Untag(item)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = elem
		}
		return arr, nil
	case TypeRecord:
		fields, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record value has type %T", val)
		}
		rec := make(Record, len(fields))
		for k, item := range fields {
			elem, err := Untag(item)
			if err != nil {
				return nil, fmt.Errorf("record[%q]: %w", k, err)
			}
			rec[k] = elem
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", typ)
	}
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		i, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return i, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

// MarshalValue encodes a value as canonical tagged JSON.
func MarshalValue(v Value) ([]byte, error) {
	return MarshalCanonical(Tag(v))
}

// MarshalArgs encodes an argument list as a canonical JSON array of tagged values.
func MarshalArgs(args Args) ([]byte, error) {
	return MarshalCanonical(TagArgs(args))
}

// UnmarshalValue decodes the output of MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	raw, err := decodeNumbers(data)
	if err != nil {
		return nil, err
	}
	return Untag(raw)
}

// UnmarshalArgs decodes the output of MarshalArgs.
func UnmarshalArgs(data []byte) (Args, error) {
	raw, err := decodeNumbers(data)
	if err != nil {
		return nil, err
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("args must be a JSON array, got %T", raw)
	}
	args := make(Args, len(items))
	for i, item := range items {
		v, err := Untag(item)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}

func decodeNumbers(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
