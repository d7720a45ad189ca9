package store

import (
	"fmt"

	"github.com/roach88/specialize/internal/ir"
)

// marshalArgs converts call arguments to canonical tagged JSON TEXT.
func marshalArgs(args ir.Args) (string, error) {
	data, err := ir.MarshalArgs(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses the output of marshalArgs.
// An empty string is an empty argument list.
func unmarshalArgs(data string) (ir.Args, error) {
	if data == "" {
		return ir.Args{}, nil
	}
	args, err := ir.UnmarshalArgs([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return args, nil
}

// boolToInt maps a Go bool onto SQLite's integer booleans.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
