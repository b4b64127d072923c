// Package store provides a SQLite-backed journal of engine runs.
//
// The journal is append-only:
//   - Runs: one row per engine session, keyed by a UUIDv7 run id
//   - Fact events: every assert, retract and modify, with the fact's slots
//     encoded as canonical JSON
//   - Firings: every rule firing with the fact ids of its token
//
// Ordering uses the engine's logical clock (seq), never wall time, so two
// runs of the same scenario produce identical journals apart from run ids.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
