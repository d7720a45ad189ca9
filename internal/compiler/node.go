package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/specialize/internal/ir"
)

// CompileNodeKind parses a CUE value into a NodeKind.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the node struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`node: Fallback1: { ... }`)
//	kind, err := CompileNodeKind(v.LookupPath(cue.ParsePath("node.Fallback1")))
//
// Declaration shape:
//
//	node: Fallback1: {
//		arity?:    int                  // inferred when omitted
//		children?: [...string]          // argument source labels
//		specialization: [...{
//			name:        string
//			accepts?:    [...string]    // one type name per argument
//			guards?:     [...string]
//			impl?:       string         // library implementation
//			returns?:    string         // constant result instead of impl
//			rewrite_on?: [...string]    // library error kinds
//		}]
//		fallback?: {name: string, impl?: string, returns?: string}
//	}
func CompileNodeKind(v cue.Value) (*ir.NodeKind, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kind := &ir.NodeKind{}

	// Node kind name from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		kind.Name = labels[len(labels)-1].String()
	}

	children, err := stringList(v, "children")
	if err != nil {
		return nil, err
	}
	kind.Children = children

	// Parse specializations (required, order is significant)
	specsVal := v.LookupPath(cue.ParsePath("specialization"))
	if !specsVal.Exists() {
		return nil, &CompileError{
			Field:   "specialization",
			Message: "at least one specialization is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := specsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		decl, err := parseSpecialization(iter.Value())
		if err != nil {
			return nil, err
		}
		kind.Specializations = append(kind.Specializations, decl)
	}

	// Parse fallback (optional)
	fbVal := v.LookupPath(cue.ParsePath("fallback"))
	if fbVal.Exists() {
		fb, err := parseFallback(fbVal)
		if err != nil {
			return nil, err
		}
		kind.Fallback = fb
	}

	arityVal := v.LookupPath(cue.ParsePath("arity"))
	if arityVal.Exists() {
		n, err := arityVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		kind.Arity = int(n)
	} else {
		kind.Arity = inferArity(kind)
	}

	return kind, nil
}

// inferArity uses the children list, then the first accepts list, then 1.
func inferArity(kind *ir.NodeKind) int {
	if len(kind.Children) > 0 {
		return len(kind.Children)
	}
	for _, s := range kind.Specializations {
		if len(s.Accepts) > 0 {
			return len(s.Accepts)
		}
	}
	return 1
}

func parseSpecialization(v cue.Value) (ir.SpecializationDecl, error) {
	var decl ir.SpecializationDecl

	name, ok, err := optionalString(v, "name")
	if err != nil {
		return decl, err
	}
	if !ok {
		return decl, &CompileError{
			Field:   "specialization.name",
			Message: "specialization name is required",
			Pos:     v.Pos(),
		}
	}
	decl.Name = name

	accepts, err := stringList(v, "accepts")
	if err != nil {
		return decl, err
	}
	for _, a := range accepts {
		decl.Accepts = append(decl.Accepts, normalizeTypeName(a))
	}

	if decl.Guards, err = stringList(v, "guards"); err != nil {
		return decl, err
	}
	if decl.RewriteOn, err = stringList(v, "rewrite_on"); err != nil {
		return decl, err
	}
	if decl.Impl, _, err = optionalString(v, "impl"); err != nil {
		return decl, err
	}
	returns, ok, err := optionalString(v, "returns")
	if err != nil {
		return decl, err
	}
	if ok {
		decl.Returns = &returns
	}

	return decl, nil
}

func parseFallback(v cue.Value) (*ir.FallbackDecl, error) {
	fb := &ir.FallbackDecl{}

	name, ok, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{
			Field:   "fallback.name",
			Message: "fallback name is required",
			Pos:     v.Pos(),
		}
	}
	fb.Name = name

	if fb.Impl, _, err = optionalString(v, "impl"); err != nil {
		return nil, err
	}
	returns, ok, err := optionalString(v, "returns")
	if err != nil {
		return nil, err
	}
	if ok {
		fb.Returns = &returns
	}
	return fb, nil
}

// normalizeTypeName maps declared names onto ir.TypeName. Unknown names are
// kept verbatim so Validate can report them with a code.
func normalizeTypeName(s string) ir.TypeName {
	if t, err := ir.ParseTypeName(s); err == nil {
		return t
	}
	return ir.TypeName(s)
}

func optionalString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", false, formatCUEError(err)
	}
	return s, true, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileNodes compiles every node kind under the top-level "node" field
// of v, in declaration order. A missing "node" field yields no kinds.
//
// With failFast set, compilation stops at the first error.
func CompileNodes(v cue.Value, failFast bool) ([]ir.NodeKind, []error) {
	nodesVal := v.LookupPath(cue.ParsePath("node"))
	if !nodesVal.Exists() {
		return nil, nil
	}

	iter, err := nodesVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var kinds []ir.NodeKind
	var errs []error
	for iter.Next() {
		kind, err := CompileNodeKind(iter.Value())
		if err != nil {
			errs = append(errs, fmt.Errorf("node.%s: %w", iter.Label(), err))
			if failFast {
				return kinds, errs
			}
			continue
		}
		kinds = append(kinds, *kind)
	}
	return kinds, errs
}

// CompileFiles compiles node kinds from individual CUE files. Each file is
// compiled on its own, so files may use different packages.
func CompileFiles(paths ...string) ([]ir.NodeKind, error) {
	ctx := cuecontext.New()
	var kinds []ir.NodeKind
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		fileKinds, errs := CompileNodes(v, true)
		if len(errs) > 0 {
			return nil, errs[0]
		}
		kinds = append(kinds, fileKinds...)
	}
	return kinds, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: "cue", Message: err.Error()}
	}

	// First error, with position info when CUE has it
	firstErr := errs[0]
	ce := &CompileError{Field: "cue", Message: firstErr.Error()}
	if positions := errors.Positions(firstErr); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
