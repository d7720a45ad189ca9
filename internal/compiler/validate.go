package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/specialize/internal/dispatch"
	"github.com/roach88/specialize/internal/ir"
)

// Validation error codes (E200-E209)
const (
	ErrUnsupportedDecl    = "E200" // unsupported type passed to Validate
	ErrKindNameEmpty      = "E201" // node kind needs a name
	ErrInvalidArity       = "E202" // negative arity or children count mismatch
	ErrNoSpecializations  = "E203" // at least one specialization required
	ErrDuplicateName      = "E204" // duplicate specialization/fallback name
	ErrUnknownTypeName    = "E205" // accepts lists an unknown type
	ErrAcceptsArity       = "E206" // accepts length differs from arity
	ErrImplOrReturns      = "E207" // exactly one of impl and returns
	ErrUnknownLibraryName = "E208" // guard/impl/error kind not in library
	ErrEmptyName          = "E209" // empty specialization, guard or kind name
)

// ValidationError represents a declaration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled node kind against the structural rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch kind := v.(type) {
	case *ir.NodeKind:
		return validateNodeKind(kind)
	case ir.NodeKind:
		return validateNodeKind(&kind)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported declaration type: %T", v),
			Code:    ErrUnsupportedDecl,
		}}
	}
}

func validateNodeKind(kind *ir.NodeKind) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(kind.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "node kind name is required",
			Code:    ErrKindNameEmpty,
		})
	}

	if kind.Arity < 0 {
		errs = append(errs, ValidationError{
			Field:   "arity",
			Message: fmt.Sprintf("arity must not be negative, got %d", kind.Arity),
			Code:    ErrInvalidArity,
		})
	}
	if len(kind.Children) > 0 && len(kind.Children) != kind.Arity {
		errs = append(errs, ValidationError{
			Field:   "children",
			Message: fmt.Sprintf("%d children declared for arity %d", len(kind.Children), kind.Arity),
			Code:    ErrInvalidArity,
		})
	}

	if len(kind.Specializations) == 0 {
		errs = append(errs, ValidationError{
			Field:   "specialization",
			Message: "at least one specialization is required",
			Code:    ErrNoSpecializations,
		})
	}

	names := make(map[string]bool)
	for i, s := range kind.Specializations {
		field := fmt.Sprintf("specialization[%d]", i)

		if s.Name == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "specialization name is required",
				Code:    ErrEmptyName,
			})
		} else if names[s.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate specialization name: %q", s.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[s.Name] = true

		if len(s.Accepts) > 0 && len(s.Accepts) != kind.Arity {
			errs = append(errs, ValidationError{
				Field:   field + ".accepts",
				Message: fmt.Sprintf("%d type constraints declared for arity %d", len(s.Accepts), kind.Arity),
				Code:    ErrAcceptsArity,
			})
		}
		for j, t := range s.Accepts {
			if !slices.Contains(ir.ValidTypeNames, t) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.accepts[%d]", field, j),
					Message: fmt.Sprintf("unknown type name %q", t),
					Code:    ErrUnknownTypeName,
				})
			}
		}

		for j, g := range s.Guards {
			if g == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.guards[%d]", field, j),
					Message: "guard name must not be empty",
					Code:    ErrEmptyName,
				})
			}
		}
		for j, k := range s.RewriteOn {
			if k == "" {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.rewrite_on[%d]", field, j),
					Message: "error kind name must not be empty",
					Code:    ErrEmptyName,
				})
			}
		}

		errs = append(errs, validateImpl(field, s.Impl, s.Returns)...)
	}

	if fb := kind.Fallback; fb != nil {
		if fb.Name == "" {
			errs = append(errs, ValidationError{
				Field:   "fallback.name",
				Message: "fallback name is required",
				Code:    ErrEmptyName,
			})
		} else if names[fb.Name] {
			errs = append(errs, ValidationError{
				Field:   "fallback.name",
				Message: fmt.Sprintf("fallback name %q clashes with a specialization", fb.Name),
				Code:    ErrDuplicateName,
			})
		}
		errs = append(errs, validateImpl("fallback", fb.Impl, fb.Returns)...)
	}

	return errs
}

// validateImpl enforces exactly one of impl and returns.
func validateImpl(field, impl string, returns *string) []ValidationError {
	switch {
	case impl != "" && returns != nil:
		return []ValidationError{{
			Field:   field,
			Message: "impl and returns are mutually exclusive",
			Code:    ErrImplOrReturns,
		}}
	case impl == "" && returns == nil:
		return []ValidationError{{
			Field:   field,
			Message: "one of impl or returns is required",
			Code:    ErrImplOrReturns,
		}}
	default:
		return nil
	}
}

// ValidateBindings reports every guard, implementation and error kind the
// declaration names that lib does not provide.
func ValidateBindings(kind *ir.NodeKind, lib *dispatch.Library) []ValidationError {
	var errs []ValidationError
	unknown := func(field, what, name string) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("unknown %s %q", what, name),
			Code:    ErrUnknownLibraryName,
		})
	}

	for i, s := range kind.Specializations {
		field := fmt.Sprintf("specialization[%d]", i)
		for j, g := range s.Guards {
			if g != "" && !lib.HasGuard(g) {
				unknown(fmt.Sprintf("%s.guards[%d]", field, j), "guard", g)
			}
		}
		if s.Impl != "" && !lib.HasImpl(s.Impl) {
			unknown(field+".impl", "impl", s.Impl)
		}
		for j, k := range s.RewriteOn {
			if k != "" && !lib.HasKind(k) {
				unknown(fmt.Sprintf("%s.rewrite_on[%d]", field, j), "error kind", k)
			}
		}
	}
	if fb := kind.Fallback; fb != nil && fb.Impl != "" && !lib.HasImpl(fb.Impl) {
		unknown("fallback.impl", "impl", fb.Impl)
	}
	return errs
}
