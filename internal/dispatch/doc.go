// Package dispatch implements speculative specialization dispatch for a
// single call site.
//
// A node kind declares an ordered SpecializationSet: candidate
// implementations, each with per-argument type constraints, guards and an
// optional set of rewrite error kinds, plus at most one unconditional
// fallback. Every Node instance bound to the set owns a private ActiveChain
// of the specializations it has seen apply.
//
// RESOLUTION:
//
// Each call runs, in order:
//  1. Active-chain pass: installed specializations in chain order; type
//     check then guards; the first full match executes.
//  2. Discovery pass: untried specializations in declaration order; the
//     first match is installed, its guards are evaluated once more as a
//     confirmation, then it executes. Scanning stops at the first discovery.
//  3. Total miss: the fallback, or an *UnsupportedSpecializationError.
//
// Guards are never memoized. Every evaluation increments the node's counter
// for that guard, and the double evaluation on installation is part of the
// observable contract.
//
// DEOPTIMIZATION:
//
// If a specialization returns an error matching one of its RewriteOn kinds
// (errors.Is), it is excluded from the node for good and resolution
// continues within the same call. The caller never sees that error.
//
// STATE PER SPECIALIZATION, PER NODE:
//
//	untried --install--> active --rewrite--> excluded
//	untried --rewrite (generic execution)--> excluded
//
// Nothing leaves excluded.
//
// THREADING:
//
// A SpecializationSet is immutable and may be shared by any number of nodes
// and goroutines. A Node is single-writer: calls against one node must not
// overlap.
package dispatch
