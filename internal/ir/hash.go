package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainAction = "instrumentd/action/v1"
	DomainEvent  = "instrumentd/event/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionID computes the content-addressed id of a journaled action.
// The id is stable across restarts and replays given the same inputs.
//
// The flow token is excluded: it is a random correlation handle, and replay
// must reproduce the same ids without it.
func ActionID(kind string, args map[string]any, now Timestamp, seq int64) (string, error) {
	obj := map[string]any{
		"kind": kind,
		"args": args,
		"now":  int64(now),
		"seq":  seq,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// EventID computes the content-addressed id of an event. Links to the action
// that produced it and its position in that action's event list.
func EventID(actionID string, index int, e Event) (string, error) {
	obj := map[string]any{
		"action_id": actionID,
		"index":     index,
		"event":     e.CanonicalMap(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustActionID is like ActionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionID(kind string, args map[string]any, now Timestamp, seq int64) string {
	id, err := ActionID(kind, args, now, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(actionID string, index int, e Event) string {
	id, err := EventID(actionID, index, e)
	if err != nil {
		panic(err)
	}
	return id
}
