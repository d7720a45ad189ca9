package dispatch

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/specialize/internal/ir"
)

// Impl is a specialization or fallback implementation.
// A returned error either matches a rewrite kind of the specialization that
// produced it or propagates to the caller unchanged.
type Impl func(args ir.Args) (ir.Value, error)

// Guard is a named boolean predicate over the call arguments.
//
// Guards are identified by name within a SpecializationSet: two
// specializations listing a guard with the same name share one guard and one
// invocation counter. The Test of the first declaration of a name is the one
// the set evaluates; a later Test under the same name is ignored. Test may
// have side effects; it is called at every point the resolution algorithm
// reaches it, never cached.
type Guard struct {
	Name string
	Test func(args ir.Args) bool
}

// Specialization is one candidate implementation of a node kind.
type Specialization struct {
	// Name identifies the specialization within its set.
	Name string

	// Accepts holds one type constraint per argument. Empty means every
	// argument is accepted.
	Accepts []ir.TypeName

	// Guards are evaluated left to right after the type check,
	// short-circuiting on the first false.
	Guards []Guard

	// Impl runs when the specialization is selected.
	Impl Impl

	// RewriteOn lists error kinds the specialization is speculatively unsafe
	// against. An Impl error for which errors.Is matches any of them excludes
	// the specialization from the node permanently.
	RewriteOn []error
}

// RewritesOn reports whether err matches one of the declared rewrite kinds.
func (s *Specialization) RewritesOn(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range s.RewriteOn {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// acceptsTypes applies the implicit type constraint.
func (s *Specialization) acceptsTypes(args ir.Args) bool {
	for i, t := range s.Accepts {
		if i >= len(args) || !t.Accepts(args[i]) {
			return false
		}
	}
	return true
}

// Fallback is the unconditional last resort of a node kind.
// It has no guards and is never installed.
type Fallback struct {
	Name string
	Impl Impl
}

// SpecializationID is the position of a specialization in its set.
// The order of ids is declaration order.
type SpecializationID int

// entry is a specialization plus its guard counter slots.
type entry struct {
	id     SpecializationID
	spec   Specialization
	guards []int // index into SpecializationSet.guardNames, parallel to spec.Guards
}

// SpecializationSet is the immutable, declaration-ordered list of
// specializations for one node kind, plus an optional fallback.
//
// INVARIANTS:
//   - entries order NEVER changes after construction
//   - specialization names are unique
//   - every specialization's Accepts is empty or has exactly Arity entries
type SpecializationSet struct {
	kind       string
	arity      int
	children   []string
	kindHash   string
	entries    []entry
	fallback   *Fallback
	guardNames []string
	guardTests []func(ir.Args) bool // parallel to guardNames
	guardIndex map[string]int
	byName     map[string]SpecializationID
}

// SetOption configures a SpecializationSet.
type SetOption func(*SpecializationSet)

// WithChildren sets the labels of the argument sources that nodes of this
// kind read from. Defaults to arg0..argN-1.
func WithChildren(labels ...string) SetOption {
	return func(s *SpecializationSet) {
		s.children = slices.Clone(labels)
	}
}

// WithKindHash records the content hash of the declaration the set was
// built from.
func WithKindHash(hash string) SetOption {
	return func(s *SpecializationSet) {
		s.kindHash = hash
	}
}

// NewSet validates and freezes a specialization set.
//
// The specs slice must be in declaration order. It is copied, so later
// changes by the caller do not affect the set.
func NewSet(kind string, arity int, specs []Specialization, fallback *Fallback, opts ...SetOption) (*SpecializationSet, error) {
	if kind == "" {
		return nil, &DefinitionError{Message: "node kind name is required"}
	}
	if arity < 0 {
		return nil, &DefinitionError{Kind: kind, Message: fmt.Sprintf("arity must not be negative, got %d", arity)}
	}

	set := &SpecializationSet{
		kind:       kind,
		arity:      arity,
		entries:    make([]entry, 0, len(specs)),
		guardIndex: make(map[string]int),
		byName:     make(map[string]SpecializationID, len(specs)),
	}

	for i, spec := range specs {
		if err := set.add(SpecializationID(i), spec); err != nil {
			return nil, err
		}
	}

	if fallback != nil {
		if fallback.Impl == nil {
			return nil, &DefinitionError{Kind: kind, Specialization: fallback.Name, Message: "fallback implementation is required"}
		}
		fb := *fallback
		set.fallback = &fb
	}

	for _, opt := range opts {
		opt(set)
	}

	if len(set.children) == 0 {
		set.children = make([]string, arity)
		for i := range set.children {
			set.children[i] = fmt.Sprintf("arg%d", i)
		}
	}
	if len(set.children) != arity {
		return nil, &DefinitionError{Kind: kind, Message: fmt.Sprintf("%d children declared for arity %d", len(set.children), arity)}
	}

	return set, nil
}

func (set *SpecializationSet) add(id SpecializationID, spec Specialization) error {
	if spec.Name == "" {
		return &DefinitionError{Kind: set.kind, Message: fmt.Sprintf("specialization %d has no name", id)}
	}
	if _, dup := set.byName[spec.Name]; dup {
		return &DefinitionError{Kind: set.kind, Specialization: spec.Name, Message: "duplicate specialization name"}
	}
	if spec.Impl == nil {
		return &DefinitionError{Kind: set.kind, Specialization: spec.Name, Message: "implementation is required"}
	}
	if len(spec.Accepts) != 0 && len(spec.Accepts) != set.arity {
		return &DefinitionError{Kind: set.kind, Specialization: spec.Name,
			Message: fmt.Sprintf("%d type constraints declared for arity %d", len(spec.Accepts), set.arity)}
	}
	for _, kind := range spec.RewriteOn {
		if kind == nil {
			return &DefinitionError{Kind: set.kind, Specialization: spec.Name, Message: "nil rewrite kind"}
		}
	}

	e := entry{id: id, guards: make([]int, len(spec.Guards))}
	for i, g := range spec.Guards {
		if g.Name == "" || g.Test == nil {
			return &DefinitionError{Kind: set.kind, Specialization: spec.Name,
				Message: fmt.Sprintf("guard %d needs a name and a test", i)}
		}
		idx, ok := set.guardIndex[g.Name]
		if !ok {
			idx = len(set.guardNames)
			set.guardNames = append(set.guardNames, g.Name)
			set.guardTests = append(set.guardTests, g.Test)
			set.guardIndex[g.Name] = idx
		}
		e.guards[i] = idx
	}

	// Freeze the slices the caller handed in.
	spec.Accepts = slices.Clone(spec.Accepts)
	spec.Guards = slices.Clone(spec.Guards)
	spec.RewriteOn = slices.Clone(spec.RewriteOn)
	e.spec = spec

	set.entries = append(set.entries, e)
	set.byName[spec.Name] = id
	return nil
}

// Kind returns the node kind name.
func (set *SpecializationSet) Kind() string { return set.kind }

// Arity returns the number of arguments every call supplies.
func (set *SpecializationSet) Arity() int { return set.arity }

// KindHash returns the declaration hash, or "" when built programmatically.
func (set *SpecializationSet) KindHash() string { return set.kindHash }

// Children returns the argument source labels.
func (set *SpecializationSet) Children() []string { return slices.Clone(set.children) }

// Len returns the number of specializations.
func (set *SpecializationSet) Len() int { return len(set.entries) }

// HasFallback reports whether a fallback is declared.
func (set *SpecializationSet) HasFallback() bool { return set.fallback != nil }

// FallbackName returns the fallback's name, or "" if there is none.
func (set *SpecializationSet) FallbackName() string {
	if set.fallback == nil {
		return ""
	}
	return set.fallback.Name
}

// Names returns specialization names in declaration order.
func (set *SpecializationSet) Names() []string {
	names := make([]string, len(set.entries))
	for i, e := range set.entries {
		names[i] = e.spec.Name
	}
	return names
}

// GuardNames returns the distinct guard names in first-use order.
func (set *SpecializationSet) GuardNames() []string {
	return slices.Clone(set.guardNames)
}

// Lookup returns the id of the named specialization.
func (set *SpecializationSet) Lookup(name string) (SpecializationID, bool) {
	id, ok := set.byName[name]
	return id, ok
}

// Name returns the name of a specialization id.
func (set *SpecializationSet) Name(id SpecializationID) string {
	return set.entries[id].spec.Name
}
