package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/instrumentd/internal/ir"
)

func seedJournal(t *testing.T, s *Store) []ir.ActionRecord {
	t.Helper()
	ctx := context.Background()

	// Written out of seq order on purpose.
	a3 := testAction("notify_custom_event", 3, map[string]any{"issuance": int64(1), "event": "cancel_issuance"})
	a1 := testAction("deposit", 1, map[string]any{"sender": "maker"})
	a2 := testAction("create_issuance", 2, map[string]any{"sender": "maker"})

	require.NoError(t, s.WriteAction(ctx, a3, testEvents(t, a3,
		ir.Event{Kind: ir.EventStateChanged, Instrument: 1, IssuanceID: 1, From: ir.StateEngageable, To: ir.StateCancelled},
	)))
	require.NoError(t, s.WriteAction(ctx, a1, testEvents(t, a1,
		ir.Event{Kind: ir.EventBalanceIncreased, Instrument: 1, Owner: "maker", Asset: "USDC", Amount: 10},
	)))
	require.NoError(t, s.WriteAction(ctx, a2, testEvents(t, a2,
		ir.Event{Kind: ir.EventIssuanceCreated, Instrument: 1, IssuanceID: 1, Owner: "maker"},
		ir.Event{Kind: ir.EventStateChanged, Instrument: 1, IssuanceID: 1, From: ir.StateInitiated, To: ir.StateEngageable},
		ir.Event{Kind: ir.EventIssuanceCreated, Instrument: 2, IssuanceID: 1, Owner: "other"},
	)))
	return []ir.ActionRecord{a1, a2, a3}
}

func TestReadActions_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	want := seedJournal(t, s)

	got, err := s.ReadActions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, int64(i+1), got[i].Seq)
	}
}

func TestReadActions_EmptyJournal(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadActions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)

	seq, err := s.LastSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestReadEventsFor(t *testing.T) {
	s := createTestStore(t)
	seedJournal(t, s)
	ctx := context.Background()

	all, err := s.ReadEventsFor(ctx, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, ir.EventBalanceIncreased, all[0].Kind)

	inst1, err := s.ReadEventsFor(ctx, EventFilter{Instrument: 1, IssuanceID: 1})
	require.NoError(t, err)
	require.Len(t, inst1, 3)
	assert.Equal(t, ir.EventIssuanceCreated, inst1[0].Kind)
	assert.Equal(t, "Engageable", inst1[1].Payload["to"])
	assert.Equal(t, "Cancelled", inst1[2].Payload["to"])

	inst2, err := s.ReadEventsFor(ctx, EventFilter{Instrument: 2})
	require.NoError(t, err)
	require.Len(t, inst2, 1)
	assert.Equal(t, 2, inst2[0].Index)
}

func TestReadJournal(t *testing.T) {
	s := createTestStore(t)
	want := seedJournal(t, s)

	entries, err := s.ReadJournal(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, want[1].ID, entries[1].Action.ID)
	assert.Len(t, entries[0].Events, 1)
	assert.Len(t, entries[1].Events, 3)
	assert.Len(t, entries[2].Events, 1)
	for i, ev := range entries[1].Events {
		assert.Equal(t, i, ev.Index)
	}
}

func TestUnmarshalObject(t *testing.T) {
	obj, err := unmarshalObject(`{"amount":9007199254740993,"asset":"USDC"}`)
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), obj["amount"])
	assert.Equal(t, "USDC", obj["asset"])

	obj, err = unmarshalObject("")
	require.NoError(t, err)
	assert.Empty(t, obj)

	_, err = unmarshalObject(`{"amount":1.5}`)
	assert.Error(t, err)
}
