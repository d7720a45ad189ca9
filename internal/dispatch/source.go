package dispatch

import (
	"fmt"

	"github.com/roach88/specialize/internal/ir"
)

// ArgumentSource produces one argument value of a call from the caller's
// frame. Sources stand in for the argument-producing children of a node in
// an execution tree and are reported verbatim in miss diagnostics.
type ArgumentSource interface {
	// Label names the source for diagnostics.
	Label() string

	// Evaluate produces the argument value.
	Evaluate(frame ir.Args) (ir.Value, error)
}

// Arg reads position i of the frame, labelled argI.
func Arg(i int) ArgumentSource {
	return argSource{label: fmt.Sprintf("arg%d", i), index: i}
}

// NamedArg reads position i of the frame under a custom label.
func NamedArg(label string, i int) ArgumentSource {
	return argSource{label: label, index: i}
}

// Const ignores the frame and always produces v.
func Const(v ir.Value) ArgumentSource {
	return constSource{value: v}
}

type argSource struct {
	label string
	index int
}

func (s argSource) Label() string { return s.label }

func (s argSource) Evaluate(frame ir.Args) (ir.Value, error) {
	if s.index < 0 || s.index >= len(frame) {
		return nil, fmt.Errorf("source %s: frame has %d values, need index %d", s.label, len(frame), s.index)
	}
	return frame[s.index], nil
}

type constSource struct {
	value ir.Value
}

func (s constSource) Label() string { return "const " + s.value.String() }

func (s constSource) Evaluate(ir.Args) (ir.Value, error) { return s.value, nil }

func sourceLabels(sources []ArgumentSource) []string {
	labels := make([]string, len(sources))
	for i, s := range sources {
		labels[i] = s.Label()
	}
	return labels
}
