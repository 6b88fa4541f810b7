package issuance

import (
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
)

// Context carries one action against one issuance.
type Context struct {
	Issuance *Issuance
	Sender   ir.Address
	Now      ir.Timestamp
	Funds    Funds
	Sink     ir.EventSink
}

// Terms returns the issuance's current terms.
func (c *Context) Terms() Terms { return c.Issuance.Terms }

// SetTerms replaces the issuance's terms.
func (c *Context) SetTerms(t Terms) { c.Issuance.Terms = t }

// Transition moves the issuance along one edge of the state graph, setting
// the engaged/settled timestamps and emitting StateChanged.
func (c *Context) Transition(to ir.IssuanceState) error {
	iss := c.Issuance
	from := iss.State
	if !CanTransition(from, to) {
		return ir.InvalidStatef("illegal transition %s -> %s", from, to).WithIssuance(iss.ID)
	}
	iss.State = to
	if to == ir.StateEngaged {
		iss.EngagedAt = c.Now
	}
	if to.Terminal() {
		iss.SettledAt = c.Now
	}
	c.emit(ir.Event{Kind: ir.EventStateChanged, IssuanceID: iss.ID, From: from, To: to})
	return nil
}

// AddLineItem appends a line item in the Initiated or Engaged state and
// returns its id. Ids start at 1 per issuance.
func (c *Context) AddLineItem(item ir.LineItem) (int64, error) {
	if item.Amount < 0 {
		return 0, ir.ValidationError("line item amount must be non-negative, got %d", item.Amount)
	}
	if item.State != ir.LineItemStateInitiated && item.State != ir.LineItemStateEngaged {
		return 0, ir.ValidationError("line item must start Initiated or Engaged, got %s", item.State)
	}
	if item.Type == ir.LineItemUnknown {
		item.Type = ir.LineItemTransfer
	}
	item.ID = int64(len(c.Issuance.LineItems) + 1)
	c.Issuance.LineItems = append(c.Issuance.LineItems, item)
	c.emitLineItem(item)
	return item.ID, nil
}

// SetLineItemState moves a line item along its own small state machine.
func (c *Context) SetLineItemState(id int64, state ir.LineItemState) error {
	item := c.Issuance.LineItem(id)
	if item == nil {
		return ir.NotFound("line item", id).WithIssuance(c.Issuance.ID)
	}
	if !item.State.CanMoveTo(state) {
		return ir.InvalidStatef("line item %d cannot move %s -> %s", id, item.State, state).WithIssuance(c.Issuance.ID)
	}
	item.State = state
	c.emitLineItem(*item)
	return nil
}

// ReleaseAll returns every balance locked for owner to their free balance.
func (c *Context) ReleaseAll(owner ir.Address) error {
	for _, asset := range c.Funds.LockedAssets(owner) {
		amount := c.Funds.LockedBalance(owner, asset)
		if amount == 0 {
			continue
		}
		if err := c.Funds.Release(owner, asset, amount); err != nil {
			return fmt.Errorf("release %s %s: %w", owner, asset, err)
		}
	}
	return nil
}

// Settle reassigns amount of locked funds to the recipient and releases it
// to their free balance.
func (c *Context) Settle(from, to ir.Address, asset ir.AssetID, amount int64) error {
	if from != to {
		if err := c.Funds.Reassign(from, to, asset, amount); err != nil {
			return err
		}
	}
	return c.Funds.Release(to, asset, amount)
}

func (c *Context) emitLineItem(item ir.LineItem) {
	c.emit(ir.Event{
		Kind:          ir.EventLineItemChanged,
		IssuanceID:    c.Issuance.ID,
		LineItemID:    item.ID,
		LineItemState: item.State,
		Owner:         item.Obligor,
		Counterparty:  item.Claimor,
		Asset:         item.Asset,
		Amount:        item.Amount,
	})
}

func (c *Context) emit(e ir.Event) {
	if c.Sink != nil {
		c.Sink.Emit(e)
	}
}
