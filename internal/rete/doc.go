// Package rete implements the incremental matching network.
//
// ARCHITECTURE:
//
// The network is an arena of nodes addressed by stable NodeID handles.
// Successor lists are slices of handles tagged with the input side they
// feed. A fact change enters at the root dispatcher, which routes it to the
// class-test node of the fact's type and of every ancestor type. Class-test
// nodes are shared: adding a second pattern on the same type reuses the
// existing node (merge-or-add keyed by type name).
//
// Node kinds:
//   - root: dispatch by type lineage
//   - filter: one Predicate over the token's top fact
//   - join: left token memory x right fact memory, optionally negated
//   - terminal: turns complete matches into activations
//
// Propagation is synchronous call/return. A change is fully propagated to
// every affected terminal before the entry call returns. The network is
// not safe for concurrent use; working memory serialises all entry calls
// under its lock.
//
// Every node boundary annotates errors passing through it, and panics
// raised by predicates or functions are recovered into LHS errors at the
// node where they happened.
//
// Stateful nodes (joins and terminals) can be grown old. An old node
// ignores UPDATE traffic for its own state while still forwarding it, so
// replaying working memory into newly added rules touches only new nodes.
package rete
