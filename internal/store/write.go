package store

import (
	"context"
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
)

// WriteAction journals an action and its events in one transaction.
// Either every row is written or none is.
func (s *Store) WriteAction(ctx context.Context, action ir.ActionRecord, events []ir.EventRecord) error {
	argsJSON, err := marshalObject(action.Args)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write action: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO actions
		(id, flow_token, kind, args, seq, now, outcome, error_code, error_message, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		action.ID,
		action.FlowToken,
		action.Kind,
		argsJSON,
		action.Seq,
		int64(action.Now),
		string(action.Outcome),
		string(action.ErrorCode),
		action.ErrorMessage,
		action.EngineVersion,
		action.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write action %s: %w", action.ID, err)
	}

	for _, ev := range events {
		if ev.ActionID != action.ID {
			return fmt.Errorf("write event %s: belongs to action %s, not %s", ev.ID, ev.ActionID, action.ID)
		}
		payload, err := marshalObject(ev.Payload)
		if err != nil {
			return fmt.Errorf("write event %s: %w", ev.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events
			(id, action_id, idx, seq, kind, instrument, issuance_id, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			ev.ID,
			ev.ActionID,
			ev.Index,
			ev.Seq,
			string(ev.Kind),
			int64(ev.Instrument),
			int64(ev.IssuanceID),
			payload,
		)
		if err != nil {
			return fmt.Errorf("write event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write action: commit: %w", err)
	}
	return nil
}
