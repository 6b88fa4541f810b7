package engine

import (
	"context"
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/store"
)

// Mismatch describes one journaled action whose re-execution diverged.
type Mismatch struct {
	Seq      int64
	ActionID string
	Reason   string
}

// Report summarizes a replay.
type Report struct {
	Actions    int
	Events     int
	Mismatches []Mismatch
}

// OK reports whether every action replayed identically.
func (r Report) OK() bool { return len(r.Mismatches) == 0 }

// Rebuild re-executes journal entries on this engine without journaling
// them again. The engine must not have executed anything yet. Afterwards
// the logical clock continues from the last journaled seq.
func (e *Engine) Rebuild(entries []store.Entry) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned != nil {
		return Report{}, NewPoisonedError(e.poisoned)
	}
	if e.clock.Current() != 0 {
		return Report{}, fmt.Errorf("rebuild: engine already at seq %d", e.clock.Current())
	}

	var report Report
	var last int64
	for _, entry := range entries {
		rec := entry.Action
		a, err := DecodeAction(rec.Kind, rec.Args)
		if err != nil {
			return report, fmt.Errorf("rebuild seq %d: %w", rec.Seq, err)
		}
		res, err := e.run(a, rec.Now, rec.Seq, rec.FlowToken)
		if err != nil {
			return report, fmt.Errorf("rebuild seq %d: %w", rec.Seq, err)
		}
		report.Actions++
		report.Events += len(res.Events)
		if reason := compare(entry, res); reason != "" {
			report.Mismatches = append(report.Mismatches, Mismatch{Seq: rec.Seq, ActionID: rec.ID, Reason: reason})
			e.logger.Warn("replay mismatch", "seq", rec.Seq, "action_id", rec.ID, "reason", reason)
		}
		last = rec.Seq
	}
	e.clock = NewClockAt(last)

	if !report.OK() {
		e.poisoned = NewReplayMismatchError(len(report.Mismatches))
		return report, e.poisoned
	}
	e.logger.Info("journal replayed", "actions", report.Actions, "events", report.Events, "seq", last)
	return report, nil
}

// Restore rebuilds the engine from its own store.
func (e *Engine) Restore(ctx context.Context) (Report, error) {
	if e.store == nil {
		return Report{}, nil
	}
	entries, err := e.store.ReadJournal(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("restore: %w", err)
	}
	return e.Rebuild(entries)
}

// Replay re-executes the journal in s on a fresh, unjournaled engine built
// with the same owner and options, and reports whether it matched.
func Replay(ctx context.Context, s *store.Store, owner ir.Address, opts ...Option) (Report, error) {
	entries, err := s.ReadJournal(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("replay: %w", err)
	}
	return New(nil, owner, opts...).Rebuild(entries)
}

func compare(entry store.Entry, res Result) string {
	want, got := entry.Action, res.Action
	switch {
	case got.ID != want.ID:
		return fmt.Sprintf("action id %s, journaled %s", got.ID, want.ID)
	case got.Outcome != want.Outcome:
		return fmt.Sprintf("outcome %s, journaled %s", got.Outcome, want.Outcome)
	case got.ErrorCode != want.ErrorCode:
		return fmt.Sprintf("error code %q, journaled %q", got.ErrorCode, want.ErrorCode)
	case len(res.Events) != len(entry.Events):
		return fmt.Sprintf("%d events, journaled %d", len(res.Events), len(entry.Events))
	}
	for i := range res.Events {
		if res.Events[i].ID != entry.Events[i].ID {
			return fmt.Sprintf("event %d id %s, journaled %s", i, res.Events[i].ID, entry.Events[i].ID)
		}
	}
	return ""
}
