package store

import "github.com/roach88/specialize/internal/ir"

// Run is one recorded scenario execution.
type Run struct {
	ID            string `json:"id"`
	Scenario      string `json:"scenario"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	MaxActive     int    `json:"max_active"`
}

// NodeRecord is a node instance created during a run.
type NodeRecord struct {
	RunID    string `json:"run_id"`
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	KindHash string `json:"kind_hash"`
	Seq      int64  `json:"seq"`
}

// CallRecord holds the argument values supplied to one call.
type CallRecord struct {
	RunID    string  `json:"run_id"`
	NodeID   string  `json:"node_id"`
	Call     int64   `json:"call"`
	Args     ir.Args `json:"-"`
	ArgsHash string  `json:"args_hash"`
	Seq      int64   `json:"seq"`
}
