package dispatch

import (
	"fmt"
	"slices"
)

// State is the per-node lifecycle of one specialization.
type State int

const (
	// StateUntried is the initial state: never installed, never excluded.
	StateUntried State = iota

	// StateActive means the specialization is installed in the chain.
	StateActive

	// StateExcluded is terminal. The specialization raised one of its
	// rewrite kinds and is never considered again by this node.
	StateExcluded
)

func (s State) String() string {
	switch s {
	case StateUntried:
		return "untried"
	case StateActive:
		return "active"
	case StateExcluded:
		return "excluded"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// activeChain is the mutable per-node view of a SpecializationSet.
//
// INVARIANTS:
//   - ids is sorted ascending, so the chain is always a subsequence of the
//     set in declaration order
//   - an id appears in ids iff states[id] == StateActive
//   - StateExcluded is never left
type activeChain struct {
	ids    []SpecializationID
	states []State
}

func newActiveChain(size int) *activeChain {
	return &activeChain{states: make([]State, size)}
}

func (c *activeChain) len() int { return len(c.ids) }

func (c *activeChain) state(id SpecializationID) State { return c.states[id] }

// install inserts an untried id at its declaration position.
func (c *activeChain) install(id SpecializationID) {
	if c.states[id] != StateUntried {
		panic(fmt.Sprintf("dispatch: install of %s specialization %d", c.states[id], id))
	}
	pos, _ := slices.BinarySearch(c.ids, id)
	c.ids = slices.Insert(c.ids, pos, id)
	c.states[id] = StateActive
}

// exclude removes id from the chain if present and marks it excluded.
// It reports whether the id was installed.
func (c *activeChain) exclude(id SpecializationID) bool {
	wasActive := c.states[id] == StateActive
	if wasActive {
		pos, found := slices.BinarySearch(c.ids, id)
		if found {
			c.ids = slices.Delete(c.ids, pos, pos+1)
		}
	}
	c.states[id] = StateExcluded
	return wasActive
}

func (c *activeChain) snapshot() []SpecializationID {
	return slices.Clone(c.ids)
}
