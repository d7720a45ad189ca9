package ir

import "fmt"

// TypeName names an argument type constraint.
type TypeName string

// Type names understood by the dispatcher.
const (
	TypeAny    TypeName = "any"
	TypeNull   TypeName = "null"
	TypeInt    TypeName = "int"
	TypeLong   TypeName = "long"
	TypeString TypeName = "string"
	TypeBool   TypeName = "bool"
	TypeArray  TypeName = "array"
	TypeRecord TypeName = "record"
	TypeOpaque TypeName = "opaque"
)

// ValidTypeNames lists every accepted type name. "object" is accepted by
// ParseTypeName as an alias for "any".
var ValidTypeNames = []TypeName{
	TypeAny, TypeNull, TypeInt, TypeLong, TypeString,
	TypeBool, TypeArray, TypeRecord, TypeOpaque,
}

// ParseTypeName resolves a declared type name.
func ParseTypeName(s string) (TypeName, error) {
	if s == "object" {
		return TypeAny, nil
	}
	for _, t := range ValidTypeNames {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown type name %q", s)
}

// Accepts reports whether v satisfies the constraint.
// A nil value never satisfies anything.
func (t TypeName) Accepts(v Value) bool {
	if v == nil {
		return false
	}
	return t == TypeAny || v.Type() == t
}

// NodeKind is the compiled declaration of one node kind: its argument
// sources, its specializations in declaration order and an optional fallback.
type NodeKind struct {
	Name            string               `json:"name"`
	Arity           int                  `json:"arity"`
	Children        []string             `json:"children,omitempty"` // argument source labels
	Specializations []SpecializationDecl `json:"specializations"`
	Fallback        *FallbackDecl        `json:"fallback,omitempty"`
}

// SpecializationDecl declares one candidate implementation.
//
// Exactly one of Impl and Returns is set: Impl names a library
// implementation, Returns is a constant string result.
type SpecializationDecl struct {
	Name      string     `json:"name"`
	Accepts   []TypeName `json:"accepts,omitempty"` // one per argument; empty means any
	Guards    []string   `json:"guards,omitempty"`
	Impl      string     `json:"impl,omitempty"`
	Returns   *string    `json:"returns,omitempty"`
	RewriteOn []string   `json:"rewrite_on,omitempty"`
}

// FallbackDecl declares the unconditional fallback implementation.
type FallbackDecl struct {
	Name    string  `json:"name"`
	Impl    string  `json:"impl,omitempty"`
	Returns *string `json:"returns,omitempty"`
}

// HasFallback reports whether the kind declares a fallback.
func (k *NodeKind) HasFallback() bool {
	return k.Fallback != nil
}

// ChildLabels returns the argument source labels, defaulting to
// arg0..argN-1 when none were declared.
func (k *NodeKind) ChildLabels() []string {
	if len(k.Children) > 0 {
		return k.Children
	}
	labels := make([]string, k.Arity)
	for i := range labels {
		labels[i] = fmt.Sprintf("arg%d", i)
	}
	return labels
}

// canonicalMap renders the declaration as a map for canonical JSON.
func (k *NodeKind) canonicalMap() map[string]any {
	specs := make([]any, len(k.Specializations))
	for i, s := range k.Specializations {
		m := map[string]any{
			"name":       s.Name,
			"accepts":    typeNamesToAny(s.Accepts),
			"guards":     stringsToAny(s.Guards),
			"rewrite_on": stringsToAny(s.RewriteOn),
		}
		if s.Impl != "" {
			m["impl"] = s.Impl
		}
		if s.Returns != nil {
			m["returns"] = *s.Returns
		}
		specs[i] = m
	}

	out := map[string]any{
		"name":            k.Name,
		"arity":           int64(k.Arity),
		"children":        stringsToAny(k.ChildLabels()),
		"specializations": specs,
	}
	if k.Fallback != nil {
		fb := map[string]any{"name": k.Fallback.Name}
		if k.Fallback.Impl != "" {
			fb["impl"] = k.Fallback.Impl
		}
		if k.Fallback.Returns != nil {
			fb["returns"] = *k.Fallback.Returns
		}
		out["fallback"] = fb
	}
	return out
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func typeNamesToAny(ts []TypeName) []any {
	out := make([]any, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}
