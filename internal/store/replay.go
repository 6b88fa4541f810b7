package store

import (
	"context"
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
)

// Entry is one action with the events it emitted.
type Entry struct {
	Action ir.ActionRecord
	Events []ir.EventRecord
}

// ReadJournal returns the whole journal in seq order, each action with its
// events. Used to rebuild state and to verify replay.
func (s *Store) ReadJournal(ctx context.Context) ([]Entry, error) {
	actions, err := s.ReadActions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	events, err := s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY seq ASC, idx ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	byAction := make(map[string][]ir.EventRecord, len(actions))
	for _, ev := range events {
		byAction[ev.ActionID] = append(byAction[ev.ActionID], ev)
	}

	entries := make([]Entry, len(actions))
	for i, a := range actions {
		evs := byAction[a.ID]
		if evs == nil {
			evs = []ir.EventRecord{}
		}
		entries[i] = Entry{Action: a, Events: evs}
	}
	return entries, nil
}
