package dispatch

import (
	"fmt"
	"sort"

	"github.com/roach88/specialize/internal/ir"
)

// Library maps the names used in node-kind declarations to guards,
// implementations and rewrite error kinds.
//
// Register everything before the first Bind; a Library is read-only
// afterwards and may be shared.
type Library struct {
	guards map[string]func(ir.Args) bool
	impls  map[string]Impl
	kinds  map[string]error
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		guards: make(map[string]func(ir.Args) bool),
		impls:  make(map[string]Impl),
		kinds:  make(map[string]error),
	}
}

// Guard registers a named guard predicate.
func (l *Library) Guard(name string, test func(ir.Args) bool) *Library {
	l.guards[name] = test
	return l
}

// Impl registers a named implementation.
func (l *Library) Impl(name string, impl Impl) *Library {
	l.impls[name] = impl
	return l
}

// Kind registers a named rewrite error kind. Matching uses errors.Is, so
// kind is normally a sentinel error.
func (l *Library) Kind(name string, kind error) *Library {
	l.kinds[name] = kind
	return l
}

// Merge copies every entry of other into l. Entries of other win.
func (l *Library) Merge(other *Library) *Library {
	for k, v := range other.guards {
		l.guards[k] = v
	}
	for k, v := range other.impls {
		l.impls[k] = v
	}
	for k, v := range other.kinds {
		l.kinds[k] = v
	}
	return l
}

func (l *Library) HasGuard(name string) bool { _, ok := l.guards[name]; return ok }
func (l *Library) HasImpl(name string) bool  { _, ok := l.impls[name]; return ok }
func (l *Library) HasKind(name string) bool  { _, ok := l.kinds[name]; return ok }

// ErrorKind returns the error registered under name.
func (l *Library) ErrorKind(name string) (error, bool) {
	kind, ok := l.kinds[name]
	return kind, ok
}

// GuardNames returns registered guard names, sorted.
func (l *Library) GuardNames() []string { return sortedKeys(l.guards) }

// ImplNames returns registered implementation names, sorted.
func (l *Library) ImplNames() []string { return sortedKeys(l.impls) }

// KindNames returns registered error kind names, sorted.
func (l *Library) KindNames() []string { return sortedKeys(l.kinds) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BindError reports a declaration that references something the library
// does not provide.
type BindError struct {
	Kind           string
	Specialization string
	Field          string
	Name           string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("node kind %s: specialization %s: unknown %s %q", e.Kind, e.Specialization, e.Field, e.Name)
}

// Bind resolves a compiled node-kind declaration against lib and builds
// its SpecializationSet.
func Bind(kind *ir.NodeKind, lib *Library) (*SpecializationSet, error) {
	specs := make([]Specialization, 0, len(kind.Specializations))
	for _, decl := range kind.Specializations {
		spec := Specialization{
			Name:    decl.Name,
			Accepts: decl.Accepts,
		}

		for _, g := range decl.Guards {
			test, ok := lib.guards[g]
			if !ok {
				return nil, &BindError{Kind: kind.Name, Specialization: decl.Name, Field: "guard", Name: g}
			}
			spec.Guards = append(spec.Guards, Guard{Name: g, Test: test})
		}

		impl, err := bindImpl(kind.Name, decl.Name, decl.Impl, decl.Returns, lib)
		if err != nil {
			return nil, err
		}
		spec.Impl = impl

		for _, k := range decl.RewriteOn {
			errKind, ok := lib.kinds[k]
			if !ok {
				return nil, &BindError{Kind: kind.Name, Specialization: decl.Name, Field: "error kind", Name: k}
			}
			spec.RewriteOn = append(spec.RewriteOn, errKind)
		}
		specs = append(specs, spec)
	}

	var fallback *Fallback
	if fb := kind.Fallback; fb != nil {
		impl, err := bindImpl(kind.Name, fb.Name, fb.Impl, fb.Returns, lib)
		if err != nil {
			return nil, err
		}
		fallback = &Fallback{Name: fb.Name, Impl: impl}
	}

	hash, err := ir.KindHash(kind)
	if err != nil {
		return nil, fmt.Errorf("hash node kind %s: %w", kind.Name, err)
	}

	return NewSet(kind.Name, kind.Arity, specs, fallback,
		WithChildren(kind.ChildLabels()...),
		WithKindHash(hash))
}

func bindImpl(kind, owner, name string, returns *string, lib *Library) (Impl, error) {
	if returns != nil {
		v := ir.String(*returns)
		return func(ir.Args) (ir.Value, error) { return v, nil }, nil
	}
	impl, ok := lib.impls[name]
	if !ok {
		return nil, &BindError{Kind: kind, Specialization: owner, Field: "impl", Name: name}
	}
	return impl, nil
}
