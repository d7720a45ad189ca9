package harness

import "github.com/roach88/specialize/internal/dispatch"

// Outcome records what one call step returned.
// Exactly one of Value and Error is set.
type Outcome struct {
	Step  int    `json:"step"`
	Node  string `json:"node"`
	Call  int64  `json:"call"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// NodeState is the final snapshot of one node instance.
type NodeState struct {
	ID    string         `json:"id"`
	Stats dispatch.Stats `json:"stats"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// RunID identifies the run in the store.
	RunID string `json:"run_id"`

	// Trace holds every dispatch event, read back from the store in seq order.
	Trace []dispatch.Event `json:"trace"`

	// Outcomes holds one entry per call step.
	Outcomes []Outcome `json:"outcomes"`

	// Nodes holds the final state of every node, in creation order.
	Nodes []NodeState `json:"nodes"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:     true,
		RunID:    runID,
		Trace:    []dispatch.Event{},
		Outcomes: []Outcome{},
		Nodes:    []NodeState{},
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Node returns the final state of the named node.
func (r *Result) Node(id string) (NodeState, bool) {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeState{}, false
}
