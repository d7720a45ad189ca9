package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/specialize/internal/builtins"
	"github.com/roach88/specialize/internal/ir"
)

func strPtr(s string) *string { return &s }

func validKind() *ir.NodeKind {
	return &ir.NodeKind{
		Name:     "Fallback1",
		Arity:    1,
		Children: []string{"a"},
		Specializations: []ir.SpecializationDecl{
			{Name: "f1", Accepts: []ir.TypeName{ir.TypeInt}, Returns: strPtr("(int)")},
			{Name: "f2", Guards: []string{"is-string"}, Impl: "identity", RewriteOn: []string{"overflow"}},
		},
		Fallback: &ir.FallbackDecl{Name: "generic", Returns: strPtr("(fallback)")},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_ValidKind(t *testing.T) {
	assert.Empty(t, Validate(validKind()))
	assert.Empty(t, Validate(*validKind()), "value form is accepted too")
}

func TestValidate_UnsupportedType(t *testing.T) {
	errs := Validate("nope")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedDecl, errs[0].Code)
}

func TestValidate_Codes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(k *ir.NodeKind)
		want   []string
	}{
		{"empty name", func(k *ir.NodeKind) { k.Name = " " }, []string{ErrKindNameEmpty}},
		{"negative arity", func(k *ir.NodeKind) { k.Arity = -1; k.Children = nil; k.Specializations[0].Accepts = nil },
			[]string{ErrInvalidArity}},
		{"children mismatch", func(k *ir.NodeKind) { k.Children = []string{"a", "b"} }, []string{ErrInvalidArity}},
		{"no specializations", func(k *ir.NodeKind) { k.Specializations = nil }, []string{ErrNoSpecializations}},
		{"duplicate", func(k *ir.NodeKind) { k.Specializations[1].Name = "f1" }, []string{ErrDuplicateName}},
		{"fallback clash", func(k *ir.NodeKind) { k.Fallback.Name = "f2" }, []string{ErrDuplicateName}},
		{"unknown type", func(k *ir.NodeKind) { k.Specializations[0].Accepts = []ir.TypeName{"float"} },
			[]string{ErrUnknownTypeName}},
		{"accepts arity", func(k *ir.NodeKind) { k.Specializations[0].Accepts = []ir.TypeName{ir.TypeInt, ir.TypeInt} },
			[]string{ErrAcceptsArity}},
		{"impl and returns", func(k *ir.NodeKind) { k.Specializations[0].Impl = "identity" }, []string{ErrImplOrReturns}},
		{"neither impl nor returns", func(k *ir.NodeKind) { k.Fallback.Returns = nil }, []string{ErrImplOrReturns}},
		{"empty names", func(k *ir.NodeKind) {
			k.Specializations[1].Name = ""
			k.Specializations[1].Guards = []string{""}
			k.Specializations[1].RewriteOn = []string{""}
			k.Fallback.Name = ""
		}, []string{ErrEmptyName, ErrEmptyName, ErrEmptyName, ErrEmptyName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := validKind()
			tt.mutate(kind)
			assert.Equal(t, tt.want, codes(Validate(kind)))
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	kind := validKind()
	kind.Name = ""
	kind.Specializations[0].Accepts = []ir.TypeName{"double"}
	kind.Specializations[1].Name = "f1"

	assert.Equal(t, []string{ErrKindNameEmpty, ErrUnknownTypeName, ErrDuplicateName}, codes(Validate(kind)))
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "specialization[0].name", Message: "boom", Code: ErrEmptyName}
	assert.Equal(t, "[E209] specialization[0].name: boom", e.Error())

	e.Line = 4
	assert.Equal(t, "[E209] line 4: specialization[0].name: boom", e.Error())
}

func TestValidateBindings(t *testing.T) {
	lib := builtins.Library()
	assert.Empty(t, ValidateBindings(validKind(), lib))

	kind := validKind()
	kind.Specializations[1].Guards = []string{"is-float"}
	kind.Specializations[1].Impl = "multiply"
	kind.Specializations[1].RewriteOn = []string{"underflow"}
	kind.Fallback = &ir.FallbackDecl{Name: "generic", Impl: "shrug"}

	errs := ValidateBindings(kind, lib)
	require.Len(t, errs, 4)
	assert.Equal(t, "specialization[1].guards[0]", errs[0].Field)
	assert.Equal(t, `unknown guard "is-float"`, errs[0].Message)
	assert.Equal(t, "specialization[1].impl", errs[1].Field)
	assert.Equal(t, "specialization[1].rewrite_on[0]", errs[2].Field)
	assert.Equal(t, "fallback.impl", errs[3].Field)
	for _, e := range errs {
		assert.Equal(t, ErrUnknownLibraryName, e.Code)
	}
}
