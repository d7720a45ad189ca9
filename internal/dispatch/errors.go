package dispatch

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/specialize/internal/ir"
)

// ErrArity is returned when a call supplies the wrong number of arguments
// or a node has the wrong number of argument sources.
var ErrArity = errors.New("arity mismatch")

// DefinitionError reports an invalid specialization set.
type DefinitionError struct {
	Kind           string
	Specialization string
	Message        string
}

func (e *DefinitionError) Error() string {
	switch {
	case e.Kind != "" && e.Specialization != "":
		return fmt.Sprintf("node kind %s: specialization %s: %s", e.Kind, e.Specialization, e.Message)
	case e.Kind != "":
		return fmt.Sprintf("node kind %s: %s", e.Kind, e.Message)
	default:
		return e.Message
	}
}

// NodeRef identifies a node instance in diagnostics.
type NodeRef struct {
	ID   string
	Kind string
}

func (r NodeRef) String() string {
	return r.Kind + "@" + r.ID
}

// UnsupportedSpecializationError is returned when no specialization applies
// to a call and the node kind declares no fallback.
//
// Its content depends only on the node identity, its argument sources and
// the supplied values, never on how much the node has cached.
type UnsupportedSpecializationError struct {
	// Node is the failing node.
	Node NodeRef

	// Sources are the node's argument sources at the time of failure.
	Sources []ArgumentSource

	// Values are the argument values supplied to the call.
	Values ir.Args
}

func newUnsupported(n *Node, args ir.Args) *UnsupportedSpecializationError {
	return &UnsupportedSpecializationError{
		Node:    n.Ref(),
		Sources: slices.Clone(n.sources),
		Values:  args.Clone(),
	}
}

func (e *UnsupportedSpecializationError) Error() string {
	return fmt.Sprintf("unsupported specialization: node %s, sources [%s], values %s",
		e.Node, strings.Join(sourceLabels(e.Sources), ", "), e.Values)
}

// SourceLabels returns the labels of the reported sources.
func (e *UnsupportedSpecializationError) SourceLabels() []string {
	return sourceLabels(e.Sources)
}

// IsUnsupported reports whether err is an UnsupportedSpecializationError.
// Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ue *UnsupportedSpecializationError
	return errors.As(err, &ue)
}

// rewriteSignal is an implementation error that matched a declared rewrite
// kind. It is converted into an exclusion and never leaves the node.
type rewriteSignal struct {
	specialization string
	cause          error
}

func (r rewriteSignal) String() string {
	return fmt.Sprintf("%s rewritten on %v", r.specialization, r.cause)
}
