package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTypeName(t *testing.T) {
	for _, name := range ValidTypeNames {
		got, err := ParseTypeName(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}

	got, err := ParseTypeName("object")
	require.NoError(t, err)
	assert.Equal(t, TypeAny, got, "object is an alias for any")

	_, err = ParseTypeName("float")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type name")
}

func TestTypeNameAccepts(t *testing.T) {
	tests := []struct {
		typ    TypeName
		value  Value
		accept bool
	}{
		{TypeInt, Int(42), true},
		{TypeInt, Long(42), false},
		{TypeLong, Long(1), true},
		{TypeLong, Int(1), false},
		{TypeString, String("x"), true},
		{TypeBool, Bool(true), true},
		{TypeOpaque, Opaque{Label: "o"}, true},
		{TypeInt, Opaque{Label: "o"}, false},
		{TypeAny, Opaque{Label: "o"}, true},
		{TypeAny, Null{}, true},
		{TypeAny, nil, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.accept, tt.typ.Accepts(tt.value), "%s accepts %v", tt.typ, tt.value)
	}
}

func TestNodeKindChildLabels(t *testing.T) {
	k := &NodeKind{Name: "K", Arity: 2}
	assert.Equal(t, []string{"arg0", "arg1"}, k.ChildLabels())

	k.Children = []string{"left", "right"}
	assert.Equal(t, []string{"left", "right"}, k.ChildLabels())
}

func TestNodeKindJSONTags(t *testing.T) {
	ret := "(int)"
	k := NodeKind{
		Name:  "K",
		Arity: 1,
		Specializations: []SpecializationDecl{
			{Name: "f1", Accepts: []TypeName{TypeInt}, Returns: &ret, RewriteOn: []string{"overflow"}},
		},
	}

	data, err := json.Marshal(k)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rewrite_on":["overflow"]`)
	assert.Contains(t, string(data), `"returns":"(int)"`)
	assert.NotContains(t, string(data), `"fallback"`)
	assert.False(t, k.HasFallback())
}
