package issuance

import (
	"log/slog"
	"slices"

	"github.com/roach88/instrumentd/internal/ir"
)

// Machine drives issuances of one variant through the shared state graph.
//
// Machine holds no issuance state; every call receives the issuance in its
// Context. Errors leave the caller responsible for undoing partial effects
// (the manager rolls back its journal).
type Machine struct {
	variant Variant
	logger  *slog.Logger
}

// NewMachine creates a machine for the given variant.
func NewMachine(v Variant, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{variant: v, logger: logger}
}

// Variant returns the machine's variant.
func (m *Machine) Variant() Variant { return m.variant }

// Understands reports whether name is a custom event this machine handles.
func (m *Machine) Understands(name string) bool {
	switch name {
	case EventCancel, EventEngagementDue, EventIssuanceDue:
		return true
	}
	return slices.Contains(m.variant.DueEvents(), name)
}

// Create takes a freshly allocated Initiated issuance, lets the variant lock
// the maker's commitment, then makes it Engageable.
func (m *Machine) Create(c *Context, terms Terms) error {
	iss := c.Issuance
	if iss.State != ir.StateInitiated {
		return ir.InvalidState(ir.StateInitiated, iss.State).WithIssuance(iss.ID)
	}
	iss.Variant = m.variant.Name()
	iss.Terms = terms
	c.emit(ir.Event{
		Kind:       ir.EventIssuanceCreated,
		IssuanceID: iss.ID,
		Owner:      iss.Maker,
		Escrow:     iss.EscrowID,
	})
	if err := m.variant.OnCreate(c); err != nil {
		return err
	}
	if err := c.Transition(ir.StateEngageable); err != nil {
		return err
	}
	m.logger.Debug("issuance created",
		"issuance_id", iss.ID,
		"variant", iss.Variant,
		"maker", iss.Maker,
		"engagement_due_at", iss.EngagementDueAt)
	return nil
}

// Engage admits the sender as taker.
func (m *Machine) Engage(c *Context, data []byte) error {
	iss := c.Issuance
	if iss.State != ir.StateEngageable {
		return ir.InvalidState(ir.StateEngageable, iss.State).WithIssuance(iss.ID)
	}
	if c.Now >= iss.EngagementDueAt {
		return ir.InvalidStatef("engagement due at %d has passed", iss.EngagementDueAt).WithIssuance(iss.ID)
	}
	if c.Sender == iss.Maker {
		return ir.Unauthorized(c.Sender, "maker cannot engage its own issuance").WithIssuance(iss.ID)
	}

	iss.Taker = c.Sender
	if err := c.Transition(ir.StateEngaged); err != nil {
		return err
	}
	c.emit(ir.Event{Kind: ir.EventIssuanceEngaged, IssuanceID: iss.ID, Owner: iss.Maker, Counterparty: iss.Taker})

	next, err := m.variant.OnEngage(c, data)
	if err != nil {
		return err
	}
	if err := m.advance(c, next); err != nil {
		return err
	}
	m.logger.Debug("issuance engaged", "issuance_id", iss.ID, "taker", iss.Taker, "state", iss.State)
	return nil
}

// Deposit handles a mid-life contribution from the sender.
func (m *Machine) Deposit(c *Context, asset ir.AssetID, amount int64) error {
	iss := c.Issuance
	if amount <= 0 {
		return ir.InvalidAmount(amount)
	}
	if iss.State != ir.StateEngaged {
		return ir.InvalidState(ir.StateEngaged, iss.State).WithIssuance(iss.ID)
	}
	next, err := m.variant.OnDeposit(c, asset, amount)
	if err != nil {
		return err
	}
	return m.advance(c, next)
}

// Notify handles a named custom event.
//
// Time-triggered events are permissionless and never fail on timing: before
// their due timestamp, or in a state they do not apply to, they are no-ops.
// Cancellation is an explicit action and fails outside Engageable.
func (m *Machine) Notify(c *Context, name string, payload []byte) error {
	iss := c.Issuance
	if !m.Understands(name) {
		return ir.ValidationError("unknown custom event %q for %s", name, m.variant.Name())
	}

	if name == EventCancel {
		if iss.State != ir.StateEngageable {
			return ir.InvalidState(ir.StateEngageable, iss.State).WithIssuance(iss.ID)
		}
		if c.Sender != iss.Maker {
			return ir.Unauthorized(c.Sender, "only the maker may cancel").WithIssuance(iss.ID)
		}
		return m.closeUnengaged(c, ir.StateCancelled)
	}

	switch iss.State {
	case ir.StateEngageable:
		due := iss.EngagementDueAt
		if name != EventEngagementDue {
			// An issuance-due check on an unengaged issuance only applies
			// when the variant fixed the issuance due at creation.
			due = iss.IssuanceDueAt
		}
		if due == 0 || c.Now < due {
			return m.noop(c, name)
		}
		return m.closeUnengaged(c, ir.StateCompleteNotEngaged)

	case ir.StateEngaged:
		if name == EventEngagementDue || c.Now < iss.IssuanceDueAt {
			return m.noop(c, name)
		}
		next, err := m.variant.OnDue(c, name)
		if err != nil {
			return err
		}
		return m.advance(c, next)
	}
	return m.noop(c, name)
}

// closeUnengaged refunds everything the maker locked and moves to a
// terminal state.
func (m *Machine) closeUnengaged(c *Context, to ir.IssuanceState) error {
	iss := c.Issuance
	if err := c.ReleaseAll(iss.Maker); err != nil {
		return err
	}
	if err := c.Transition(to); err != nil {
		return err
	}
	m.logger.Debug("issuance closed unengaged", "issuance_id", iss.ID, "state", to)
	return nil
}

func (m *Machine) advance(c *Context, next ir.IssuanceState) error {
	if next == ir.StateUnknown || next == c.Issuance.State {
		return nil
	}
	return c.Transition(next)
}

func (m *Machine) noop(c *Context, name string) error {
	m.logger.Debug("custom event ignored",
		"issuance_id", c.Issuance.ID,
		"event", name,
		"state", c.Issuance.State,
		"now", c.Now)
	return nil
}
