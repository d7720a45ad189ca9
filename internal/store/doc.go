// Package store provides SQLite-backed durable storage for dispatch traces.
//
// The store is an append-only log of:
//   - Runs: one scenario execution
//   - Nodes: node instances created in a run, with the hash of their
//     node-kind declaration
//   - Calls: the argument values supplied to each call
//   - Events: every resolution step the dispatcher reported
//
// Nothing here feeds back into dispatch. A recorded run can be replayed on
// fresh nodes, but an active chain is never restored from storage.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Queries order by seq ASC, with id COLLATE BINARY as tie-break where
//     seq is not unique
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Argument values are stored as RFC 8785 canonical JSON in the tagged form
// produced by ir.MarshalArgs, so int and long survive a round trip.
package store
