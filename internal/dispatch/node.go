package dispatch

import (
	"log/slog"
	"slices"
)

// DefaultMaxActive is the default capacity of a node's active chain.
const DefaultMaxActive = 8

// Node is one call site bound to a SpecializationSet.
//
// A Node owns its active chain and counters. It is not safe for concurrent
// use; see the package documentation.
type Node struct {
	id      string
	set     *SpecializationSet
	sources []ArgumentSource
	chain   *activeChain

	// Counters, indexed like set.guardNames and set.entries.
	guardCalls    []int64
	execCounts    []int64
	fallbackCalls int64
	calls         int64

	maxActive int
	idGen     IDGenerator
	clock     *Clock
	logger    *slog.Logger
	recorder  Recorder
}

// NodeOption configures a Node.
type NodeOption func(*Node)

// WithMaxActive bounds the number of installed specializations. Once the
// chain is full, newly matching specializations run without installation.
// Values below 1 are ignored.
func WithMaxActive(n int) NodeOption {
	return func(node *Node) {
		if n > 0 {
			node.maxActive = n
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) NodeOption {
	return func(node *Node) {
		if logger != nil {
			node.logger = logger
		}
	}
}

// WithRecorder attaches a trace recorder.
func WithRecorder(r Recorder) NodeOption {
	return func(node *Node) {
		if r != nil {
			node.recorder = r
		}
	}
}

// WithIDGenerator sets the source of the node identity.
// Defaults to UUIDv7Generator.
func WithIDGenerator(gen IDGenerator) NodeOption {
	return func(node *Node) {
		if gen != nil {
			node.idGen = gen
		}
	}
}

// WithClock sets the logical clock that stamps trace events.
func WithClock(c *Clock) NodeOption {
	return func(node *Node) {
		if c != nil {
			node.clock = c
		}
	}
}

// WithSources replaces the default argument sources. The number of sources
// must equal the set's arity or every Execute fails with ErrArity.
func WithSources(sources ...ArgumentSource) NodeOption {
	return func(node *Node) {
		node.sources = append([]ArgumentSource{}, sources...)
	}
}

// NewNode creates an uninitialized node instance: empty chain, zero counters.
func NewNode(set *SpecializationSet, opts ...NodeOption) *Node {
	n := &Node{
		set:        set,
		chain:      newActiveChain(len(set.entries)),
		guardCalls: make([]int64, len(set.guardNames)),
		execCounts: make([]int64, len(set.entries)),
		maxActive:  DefaultMaxActive,
		idGen:      UUIDv7Generator{},
		logger:     slog.Default(),
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sources == nil {
		n.sources = make([]ArgumentSource, set.arity)
		for i, label := range set.children {
			n.sources[i] = NamedArg(label, i)
		}
	}
	if n.clock == nil {
		n.clock = NewClock()
	}
	n.id = n.idGen.Generate()
	return n
}

// ID returns the node identity.
func (n *Node) ID() string { return n.id }

// Set returns the bound specialization set.
func (n *Node) Set() *SpecializationSet { return n.set }

// Ref returns the diagnostic reference of the node.
func (n *Node) Ref() NodeRef {
	return NodeRef{ID: n.id, Kind: n.set.kind}
}

// Sources returns the node's argument sources.
func (n *Node) Sources() []ArgumentSource { return slices.Clone(n.sources) }

// Chain returns the names of installed specializations in chain order.
func (n *Node) Chain() []string {
	ids := n.chain.snapshot()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = n.set.Name(id)
	}
	return names
}

// State returns the lifecycle state of the named specialization.
// Unknown names report StateUntried and false.
func (n *Node) State(name string) (State, bool) {
	id, ok := n.set.Lookup(name)
	if !ok {
		return StateUntried, false
	}
	return n.chain.state(id), true
}

// GuardCalls returns how often the named guard has been evaluated.
func (n *Node) GuardCalls(name string) int64 {
	idx, ok := n.set.guardIndex[name]
	if !ok {
		return 0
	}
	return n.guardCalls[idx]
}

// ExecCount returns how often the named specialization's implementation ran.
func (n *Node) ExecCount(name string) int64 {
	id, ok := n.set.Lookup(name)
	if !ok {
		return 0
	}
	return n.execCounts[id]
}

// FallbackCalls returns how often the fallback ran.
func (n *Node) FallbackCalls() int64 { return n.fallbackCalls }

// Calls returns the number of calls dispatched so far.
func (n *Node) Calls() int64 { return n.calls }

// Stats is a snapshot of a node's observable state.
type Stats struct {
	Calls      int64            `json:"calls"`
	Chain      []string         `json:"chain"`
	Guards     map[string]int64 `json:"guards"`
	Executions map[string]int64 `json:"executions"`
	Fallback   int64            `json:"fallback"`
	Excluded   []string         `json:"excluded"`
}

// Stats returns a snapshot of chain contents and counters.
func (n *Node) Stats() Stats {
	st := Stats{
		Calls:      n.calls,
		Chain:      n.Chain(),
		Guards:     make(map[string]int64, len(n.guardCalls)),
		Executions: make(map[string]int64, len(n.execCounts)),
		Fallback:   n.fallbackCalls,
		Excluded:   []string{},
	}
	for i, name := range n.set.guardNames {
		st.Guards[name] = n.guardCalls[i]
	}
	for i, e := range n.set.entries {
		st.Executions[e.spec.Name] = n.execCounts[i]
		if n.chain.state(e.id) == StateExcluded {
			st.Excluded = append(st.Excluded, e.spec.Name)
		}
	}
	return st
}
