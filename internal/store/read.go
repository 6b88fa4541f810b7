package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
)

const actionColumns = `id, flow_token, kind, args, seq, now, outcome, error_code, error_message, engine_version, ir_version`

const eventColumns = `id, action_id, idx, seq, kind, instrument, issuance_id, payload`

// ReadAction retrieves an action by id.
// Not found satisfies errors.Is(err, sql.ErrNoRows).
func (s *Store) ReadAction(ctx context.Context, id string) (ir.ActionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, id)
	return scanAction(row)
}

// ReadActions returns every journaled action ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadActions(ctx context.Context) ([]ir.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := []ir.ActionRecord{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

// ReadEvents returns the events of one action in emission order.
func (s *Store) ReadEvents(ctx context.Context, actionID string) ([]ir.EventRecord, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE action_id = ?
		ORDER BY idx ASC
	`, actionID)
}

// EventFilter narrows ReadEventsFor. Zero fields match everything.
type EventFilter struct {
	Instrument ir.InstrumentID
	IssuanceID ir.IssuanceID
}

// ReadEventsFor returns journaled events matching f, ordered by seq then
// emission order.
func (s *Store) ReadEventsFor(ctx context.Context, f EventFilter) ([]ir.EventRecord, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE (? = 0 OR instrument = ?) AND (? = 0 OR issuance_id = ?)
		ORDER BY seq ASC, idx ASC
	`, int64(f.Instrument), int64(f.Instrument), int64(f.IssuanceID), int64(f.IssuanceID))
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ir.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.EventRecord{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (ir.ActionRecord, error) {
	var (
		a                   ir.ActionRecord
		args, outcome, code string
		now                 int64
	)
	err := row.Scan(&a.ID, &a.FlowToken, &a.Kind, &args, &a.Seq, &now, &outcome, &code,
		&a.ErrorMessage, &a.EngineVersion, &a.IRVersion)
	if err != nil {
		return ir.ActionRecord{}, fmt.Errorf("scan action: %w", err)
	}
	a.Args, err = unmarshalObject(args)
	if err != nil {
		return ir.ActionRecord{}, fmt.Errorf("scan action %s: %w", a.ID, err)
	}
	a.Now = ir.Timestamp(now)
	a.Outcome = ir.Outcome(outcome)
	a.ErrorCode = ir.ErrorCode(code)
	return a, nil
}

func scanEvent(row scanner) (ir.EventRecord, error) {
	var (
		ev                     ir.EventRecord
		kind, payload          string
		instrument, issuanceID int64
	)
	err := row.Scan(&ev.ID, &ev.ActionID, &ev.Index, &ev.Seq, &kind, &instrument, &issuanceID, &payload)
	if err != nil {
		return ir.EventRecord{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Payload, err = unmarshalObject(payload)
	if err != nil {
		return ir.EventRecord{}, fmt.Errorf("scan event %s: %w", ev.ID, err)
	}
	ev.Kind = ir.EventKind(kind)
	ev.Instrument = ir.InstrumentID(instrument)
	ev.IssuanceID = ir.IssuanceID(issuanceID)
	return ev, nil
}
