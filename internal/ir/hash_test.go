package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionIDDeterminism(t *testing.T) {
	args := map[string]any{"sender": "alice", "asset": "USDC", "amount": int64(100)}

	id1, err := ActionID("deposit", args, 1000, 1)
	require.NoError(t, err)
	id2, err := ActionID("deposit", args, 1000, 1)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "ActionID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestActionIDChangesWithInput(t *testing.T) {
	args := map[string]any{"sender": "alice"}

	id1 := MustActionID("deposit", args, 1000, 1)
	id2 := MustActionID("withdraw", args, 1000, 1)
	id3 := MustActionID("deposit", args, 1001, 1)
	id4 := MustActionID("deposit", args, 1000, 2)
	id5 := MustActionID("deposit", map[string]any{"sender": "bob"}, 1000, 1)

	assert.NotEqual(t, id1, id2, "different kind")
	assert.NotEqual(t, id1, id3, "different time")
	assert.NotEqual(t, id1, id4, "different seq")
	assert.NotEqual(t, id1, id5, "different args")
}

func TestActionIDRejectsFloatArgs(t *testing.T) {
	_, err := ActionID("deposit", map[string]any{"amount": 1.5}, 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ActionID")
}

func TestEventIDLinksToAction(t *testing.T) {
	actionID := MustActionID("create_issuance", map[string]any{}, 1000, 1)
	ev := Event{Kind: EventStateChanged, IssuanceID: 1, From: StateInitiated, To: StateEngageable}

	id1 := MustEventID(actionID, 0, ev)
	id2 := MustEventID(actionID, 1, ev)
	id3 := MustEventID("other", 0, ev)

	assert.Len(t, id1, 64)
	assert.NotEqual(t, actionID, id1)
	assert.NotEqual(t, id1, id2, "position is part of identity")
	assert.NotEqual(t, id1, id3, "action is part of identity")
	assert.Equal(t, id1, MustEventID(actionID, 0, ev))
}

func TestEventIDDependsOnPayload(t *testing.T) {
	a := Event{Kind: EventBalanceIncreased, Escrow: "instrument", Owner: "alice", Asset: "USDC", Amount: 10}
	b := a
	b.Amount = 11

	assert.NotEqual(t, MustEventID("x", 0, a), MustEventID("x", 0, b))
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainAction, data), hashWithDomain(DomainEvent, data))
}
