// Package engine hosts the instrument registry and serializes every action
// against it.
//
// Each action is stamped with a logical seq from Clock and an invocation
// time, applied to the registry, and journaled with the events it emitted
// in one SQLite transaction. Failed actions are journaled too, with their
// error code and no events.
//
// Thread-safety: Execute holds one mutex per engine, so actions never
// interleave. Submit and Run offer the same serialization through a FIFO
// queue drained by a single goroutine.
//
// If a journal write fails the in-memory registry is ahead of the journal.
// The engine is then poisoned and refuses further actions; restart it from
// the journal.
//
// # Replay and Determinism
//
// The journal is the source of truth. Every action is journaled with its
// kind, args, invocation time and seq, whether it succeeded or not, and
// registry state is never stored. Rebuilding state means re-executing the
// journal in seq order on a fresh engine through the same run path used
// for live actions.
//
// Determinism rests on three things:
//
//  1. Action times come from the record, never from a wall clock.
//  2. Action and event ids are content-addressed over RFC 8785 canonical
//     JSON, so identical inputs always hash identically.
//  3. Managers keep no state outside the registry the engine owns.
//
// Replay therefore doubles as a check: each re-executed action must produce
// the journaled action id, outcome, error code and event ids. Any
// difference is reported as a Mismatch.
package engine
