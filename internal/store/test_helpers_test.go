package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/ir"
)

// createTestStore opens a store in a temp dir, closed at test end.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// verifyPragma checks that a pragma is set to the expected value.
func verifyPragma(s *Store, name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// testAction builds a successful action record with a real content id.
func testAction(kind string, seq int64, args map[string]any) ir.ActionRecord {
	now := ir.Timestamp(1000 + seq)
	return ir.ActionRecord{
		ID:            ir.MustActionID(kind, args, now, seq),
		FlowToken:     "test-flow",
		Kind:          kind,
		Args:          args,
		Seq:           seq,
		Now:           now,
		Outcome:       ir.OutcomeOK,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

func testEvents(t *testing.T, a ir.ActionRecord, events ...ir.Event) []ir.EventRecord {
	t.Helper()
	out := make([]ir.EventRecord, len(events))
	for i, e := range events {
		rec, err := ir.NewEventRecord(a, i, e)
		require.NoError(t, err)
		out[i] = rec
	}
	return out
}
