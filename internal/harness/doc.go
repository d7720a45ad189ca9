// Package harness runs dispatch scenarios and checks their outcome.
//
// A scenario binds one node kind from CUE specs, feeds calls to node
// instances of it, and validates results, counters and the recorded trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/guarded.cue
//	node: Guarded
//	max_active: 8
//	steps:
//	  - call: [{long: 1}]
//	    expect:
//	      result: {string: generic}
//	      guards: {is-int: 1, is-string: 1}
//	      fallback: 1
//	      chain: []
//	  - new_node: true
//	  - call: [{opaque: UNKNOWN}]
//	    expect:
//	      error: unsupported
//	assertions:
//	  - type: trace_count
//	    event: install
//	    specialization: s0
//	    count: 1
//	  - type: final_state
//	    expect: {excluded: [narrow]}
//
// # Assertion Types
//
//   - trace_contains: some event matches the pattern
//   - trace_order: events matching the patterns appear in order
//   - trace_count: exactly count events match the pattern
//   - final_state: a node's final counters and chain match
//
// # Deterministic Testing
//
// Every run uses a fresh logical clock shared by all nodes and node ids
// from a sequence ("node-1", "node-2", ...). Node creation and each call
// record take one tick before dispatch, so the trace of a scenario is
// byte-for-byte reproducible and can be compared against golden files or
// replayed from a store.
package harness
