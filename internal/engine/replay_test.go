package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/registry"
	"github.com/roach88/instrumentd/internal/store"
	"github.com/roach88/instrumentd/internal/testutil"
)

func TestReplay_FullJournalMatches(t *testing.T) {
	s := setupTestStore(t)
	e, clock := newTestEngine(t, s)
	lendingLifecycle(t, e, clock)

	// A rejected action is part of the journal too.
	res, err := e.Execute(context.Background(), Action{Kind: KindDefundRegistry, Sender: fsp, Amount: 1})
	require.NoError(t, err)
	require.Error(t, res.Err)

	report, err := Replay(context.Background(), s, owner, engineOptions(t, testutil.NewFakeTime(0))...)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 11, report.Actions)
	assert.Positive(t, report.Events)
}

func TestRestore_ContinuesFromJournal(t *testing.T) {
	s := setupTestStore(t)
	e, clock := newTestEngine(t, s)
	id := lendingLifecycle(t, e, clock)

	restored := New(s, owner, engineOptions(t, clock)...)
	report, err := restored.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Actions)
	assert.Equal(t, int64(10), restored.Clock().Current())

	err = restored.View(func(r *registry.Registry) error {
		m, err := r.LookupInstrumentManager(id)
		require.NoError(t, err)
		state, err := m.IssuanceState(1)
		require.NoError(t, err)
		assert.Equal(t, ir.StateCompleteEngaged, state)
		return nil
	})
	require.NoError(t, err)

	// New actions append after the restored seq.
	res := mustExecute(t, restored, Action{Kind: KindWithdraw, Instrument: id, Sender: maker, Asset: "USDC", Amount: 24000})
	assert.Equal(t, int64(11), res.Action.Seq)
}

func TestRebuild_ReportsMismatch(t *testing.T) {
	s := setupTestStore(t)
	e, _ := newTestEngine(t, s)
	mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 10})

	entries, err := s.ReadJournal(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	entries[0].Events = append(entries[0].Events, ir.EventRecord{ID: "forged"})

	fresh, _ := newTestEngine(t, nil)
	report, err := fresh.Rebuild(entries)
	require.Error(t, err)
	assert.True(t, IsReplayMismatch(err))
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, int64(1), report.Mismatches[0].Seq)

	_, err = fresh.Execute(context.Background(), Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})
	assert.True(t, IsPoisoned(err))
}

func TestRebuild_RefusesUsedEngine(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	mustExecute(t, e, Action{Kind: KindFundRegistry, Sender: fsp, Amount: 1})

	_, err := e.Rebuild([]store.Entry{})
	assert.Error(t, err)
}

func TestRestore_WithoutStore(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	report, err := e.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Actions)
}
