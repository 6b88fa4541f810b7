// Package store provides the SQLite-backed action journal.
//
// The journal is append-only:
//   - actions: one row per executed action, successful or not
//   - events: the events a successful action emitted, in emission order
//
// An action and its events are written in one transaction. Ordering uses
// the engine's logical seq, never wall time; every read orders by
// seq ASC, then id or idx ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Action and event ids are content-addressed (internal/ir/hash.go).
package store
