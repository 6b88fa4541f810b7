package manager

import (
	"fmt"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// DepositToEscrow credits sender's free balance in the instrument escrow.
func (m *Manager) DepositToEscrow(sender ir.Address, asset ir.AssetID, amount int64) error {
	return m.atomic("deposit", func(ir.Timestamp) error {
		if err := requireSender(sender); err != nil {
			return err
		}
		return m.instrument.Deposit(sender, asset, amount)
	})
}

// WithdrawFromEscrow debits sender's free balance in the instrument escrow.
func (m *Manager) WithdrawFromEscrow(sender ir.Address, asset ir.AssetID, amount int64) error {
	return m.atomic("withdraw", func(ir.Timestamp) error {
		if err := requireSender(sender); err != nil {
			return err
		}
		return m.instrument.Withdraw(sender, asset, amount)
	})
}

// AdminDeposit credits owner's free balance on the escrow admin's authority.
func (m *Manager) AdminDeposit(caller, owner ir.Address, asset ir.AssetID, amount int64) error {
	return m.atomic("admin_deposit", func(ir.Timestamp) error {
		return m.instrument.DepositByAdmin(caller, owner, asset, amount)
	})
}

// AdminWithdraw debits owner's free balance on the escrow admin's authority.
func (m *Manager) AdminWithdraw(caller, owner ir.Address, asset ir.AssetID, amount int64) error {
	return m.atomic("admin_withdraw", func(ir.Timestamp) error {
		return m.instrument.WithdrawByAdmin(caller, owner, asset, amount)
	})
}

// CreateIssuance validates the maker's parameters, allocates the next
// issuance and its escrow, collects the registry deposit and locks the
// maker's commitment. Nothing changes on failure.
func (m *Manager) CreateIssuance(sender ir.Address, params []byte) (ir.IssuanceID, error) {
	var id ir.IssuanceID
	err := m.atomic("create_issuance", func(now ir.Timestamp) error {
		if err := requireSender(sender); err != nil {
			return err
		}
		if m.deactivated {
			return ir.InvalidStatef("instrument %d is deactivated", m.cfg.Instrument)
		}
		terms, err := m.machine.Variant().ValidateCreation(params)
		if err != nil {
			return err
		}

		id = ir.IssuanceID(len(m.issuances) + 1)
		eid := IssuanceEscrowID(m.cfg.Instrument, id)
		iss := &issuance.Issuance{
			ID:         id,
			Instrument: m.cfg.Instrument,
			Maker:      sender,
			State:      ir.StateInitiated,
			EscrowID:   eid,
			CreatedAt:  now,
		}
		m.issuances = append(m.issuances, iss)
		m.escrows[eid] = m.newLedger(eid)
		n := len(m.issuances) - 1
		m.scope.Journal.Record(func() {
			m.issuances = m.issuances[:n]
			delete(m.escrows, eid)
		})

		c := m.context(iss, sender, now)
		if err := m.collectDeposit(c); err != nil {
			return err
		}
		if err := m.machine.Create(c, terms); err != nil {
			return err
		}
		m.logger.Info("issuance created", "issuance_id", id, "maker", sender, "variant", iss.Variant)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EngageIssuance admits sender as the taker of issuance id.
func (m *Manager) EngageIssuance(id ir.IssuanceID, sender ir.Address, data []byte) error {
	return m.onIssuance("engage_issuance", id, sender, func(c *issuance.Context) error {
		return m.machine.Engage(c, data)
	})
}

// DepositToIssuance handles a mid-life contribution such as a repayment.
func (m *Manager) DepositToIssuance(id ir.IssuanceID, sender ir.Address, asset ir.AssetID, amount int64) error {
	return m.onIssuance("deposit_to_issuance", id, sender, func(c *issuance.Context) error {
		return m.machine.Deposit(c, asset, amount)
	})
}

// NotifyCustomEvent routes a named event to issuance id.
func (m *Manager) NotifyCustomEvent(id ir.IssuanceID, sender ir.Address, name string, payload []byte) error {
	return m.atomic("notify_custom_event", func(now ir.Timestamp) error {
		if err := requireSender(sender); err != nil {
			return err
		}
		var target *issuance.Issuance
		resolve := func(id ir.IssuanceID) (*issuance.Context, error) {
			iss, err := m.lookup(id)
			if err != nil {
				return nil, err
			}
			m.track(iss)
			target = iss
			return m.context(iss, sender, now), nil
		}
		if err := m.dispatcher.Dispatch(resolve, id, name, payload); err != nil {
			return err
		}
		return m.settle(m.context(target, sender, now))
	})
}

// onIssuance runs an explicit action against one issuance and settles it.
func (m *Manager) onIssuance(op string, id ir.IssuanceID, sender ir.Address, fn func(*issuance.Context) error) error {
	return m.atomic(op, func(now ir.Timestamp) error {
		if err := requireSender(sender); err != nil {
			return err
		}
		iss, err := m.lookup(id)
		if err != nil {
			return err
		}
		m.track(iss)
		c := m.context(iss, sender, now)
		if err := fn(c); err != nil {
			return err
		}
		return m.settle(c)
	})
}

// Deactivate ends the instrument. Allowed once no issuance is pending and
// the termination time has passed, or by the owner after the override time.
// An unset time never passes.
func (m *Manager) Deactivate(sender ir.Address) error {
	return m.atomic("deactivate", func(now ir.Timestamp) error {
		if m.deactivated {
			return ir.InvalidStatef("instrument %d is already deactivated", m.cfg.Instrument)
		}
		pending := m.Pending()
		normal := pending == 0 && m.cfg.TerminatesAt > 0 && now >= m.cfg.TerminatesAt
		override := sender == m.cfg.Owner && m.cfg.OverrideAt > 0 && now >= m.cfg.OverrideAt
		if !normal && !override {
			return ir.CannotDeactivate(fmt.Sprintf("%d issuances pending, terminates at %d, override at %d",
				pending, m.cfg.TerminatesAt, m.cfg.OverrideAt))
		}
		m.deactivated = true
		m.scope.Journal.Record(func() { m.deactivated = false })
		m.scope.Sink.Emit(ir.Event{Kind: ir.EventInstrumentDeactivated, Owner: sender})
		m.logger.Info("instrument deactivated", "sender", sender, "pending", pending, "override", !normal)
		return nil
	})
}

// collectDeposit moves the registry issuance deposit from the maker's free
// balance into the issuance escrow under DepositHolder.
func (m *Manager) collectDeposit(c *issuance.Context) error {
	amount := m.deposits.IssuanceDeposit()
	if amount <= 0 {
		return nil
	}
	asset := m.deposits.DepositAsset()
	iss := c.Issuance
	if err := c.Funds.Lock(iss.Maker, asset, amount); err != nil {
		return err
	}
	if err := c.Funds.Reassign(iss.Maker, DepositHolder, asset, amount); err != nil {
		return err
	}
	iss.Deposit = amount
	c.Sink.Emit(ir.Event{Kind: ir.EventDepositCollected, IssuanceID: iss.ID, Owner: iss.Maker, Asset: asset, Amount: amount})
	return nil
}

// settle runs after every successful issuance action: a terminal issuance
// has its deposit burned or refunded, and its escrow is frozen once empty.
func (m *Manager) settle(c *issuance.Context) error {
	iss := c.Issuance
	if !iss.State.Terminal() {
		return nil
	}
	ledger := m.escrows[iss.EscrowID]

	if iss.Deposit > 0 && !iss.DepositSettled {
		asset := m.deposits.DepositAsset()
		ev := ir.Event{IssuanceID: iss.ID, Asset: asset, Amount: iss.Deposit}
		if m.deposits.RefundDeposits() {
			if err := c.Funds.Reassign(DepositHolder, iss.Maker, asset, iss.Deposit); err != nil {
				return err
			}
			if err := c.Funds.Release(iss.Maker, asset, iss.Deposit); err != nil {
				return err
			}
			ev.Kind, ev.Owner = ir.EventDepositRefunded, iss.Maker
		} else {
			if err := ledger.Withdraw(DepositHolder, asset, iss.Deposit); err != nil {
				return err
			}
			ev.Kind, ev.Owner = ir.EventDepositBurned, DepositHolder
		}
		iss.DepositSettled = true
		c.Sink.Emit(ev)
	}

	if ledger.Empty() && !ledger.Frozen() {
		ledger.Freeze()
	}
	return nil
}
