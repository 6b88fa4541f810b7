package registry

import (
	"github.com/roach88/instrumentd/internal/instruments"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/manager"
)

// Fund credits sender's wallet balance in the deposit asset.
func (r *Registry) Fund(sender ir.Address, amount int64) error {
	return r.atomic("fund_registry", func(ir.Timestamp) error {
		if sender == "" {
			return ir.ValidationError("sender is required")
		}
		return r.wallet.Deposit(sender, r.asset, amount)
	})
}

// Defund debits sender's wallet balance in the deposit asset.
func (r *Registry) Defund(sender ir.Address, amount int64) error {
	return r.atomic("defund_registry", func(ir.Timestamp) error {
		return r.wallet.Withdraw(sender, r.asset, amount)
	})
}

// SetInstrumentDeposit changes the activation deposit for instruments
// activated from now on.
func (r *Registry) SetInstrumentDeposit(sender ir.Address, amount int64) error {
	if err := r.requireOwner(sender, "set the instrument deposit"); err != nil {
		return err
	}
	if amount < 0 {
		return ir.ValidationError("instrument deposit must not be negative, got %d", amount)
	}
	r.instrumentDeposit = amount
	r.logger.Info("instrument deposit set", "amount", amount)
	return nil
}

// SetIssuanceDeposit changes the deposit collected from makers at creation.
func (r *Registry) SetIssuanceDeposit(sender ir.Address, amount int64) error {
	if err := r.requireOwner(sender, "set the issuance deposit"); err != nil {
		return err
	}
	if amount < 0 {
		return ir.ValidationError("issuance deposit must not be negative, got %d", amount)
	}
	r.issuanceDeposit = amount
	r.logger.Info("issuance deposit set", "amount", amount)
	return nil
}

// SetDepositPolicy changes whether deposits are burned or refunded. It
// applies to every deposit settled afterwards, including deposits collected
// earlier.
func (r *Registry) SetDepositPolicy(sender ir.Address, p Policy) error {
	if err := r.requireOwner(sender, "set the deposit policy"); err != nil {
		return err
	}
	if _, err := ParsePolicy(string(p)); err != nil {
		return err
	}
	r.policy = p
	r.logger.Info("deposit policy set", "policy", p)
	return nil
}

// ActivateInstrument collects the activation deposit from sender's wallet
// and builds the instrument's manager. Instrument ids start at 1.
func (r *Registry) ActivateInstrument(sender ir.Address, name, variant string, params InstrumentParams) (ir.InstrumentID, error) {
	var id ir.InstrumentID
	err := r.atomic("activate_instrument", func(now ir.Timestamp) error {
		if sender == "" {
			return ir.ValidationError("sender is required")
		}
		if name == "" {
			return ir.ValidationError("instrument name is required")
		}
		if _, ok := r.byName[name]; ok {
			return ir.ValidationError("instrument %q already exists", name)
		}
		if params.TerminatesAt <= 0 {
			return ir.ValidationError("termination time is required")
		}
		if params.OverrideAt < params.TerminatesAt {
			return ir.ValidationError("override time %d precedes termination time %d",
				params.OverrideAt, params.TerminatesAt)
		}
		v, err := instruments.New(variant, r.oracle)
		if err != nil {
			return err
		}

		id = ir.InstrumentID(len(r.managers) + 1)
		if r.instrumentDeposit > 0 {
			holder := heldBy(id)
			if err := r.wallet.Transfer(sender, holder, r.asset, r.instrumentDeposit); err != nil {
				return err
			}
			r.held[id] = r.instrumentDeposit
			r.scope.Journal.Record(func() { delete(r.held, id) })
			r.scope.Sink.Emit(ir.Event{Kind: ir.EventDepositCollected, Instrument: id, Owner: sender,
				Asset: r.asset, Amount: r.instrumentDeposit})
		}

		admin := params.Admin
		if admin == "" {
			admin = r.owner
		}
		m := manager.New(manager.Config{
			Instrument:   id,
			Name:         name,
			Owner:        sender,
			Admin:        admin,
			NativeAsset:  params.NativeAsset,
			ActivatedAt:  now,
			TerminatesAt: params.TerminatesAt,
			OverrideAt:   params.OverrideAt,
		}, v, r.clock,
			manager.WithDeposits(r),
			manager.WithSink(ir.EventSinkFunc(r.publish)),
			manager.WithLogger(r.logger),
		)
		r.managers = append(r.managers, m)
		r.byName[name] = id
		n := len(r.managers) - 1
		r.scope.Journal.Record(func() {
			r.managers = r.managers[:n]
			delete(r.byName, name)
		})

		r.scope.Sink.Emit(ir.Event{Kind: ir.EventInstrumentActivated, Instrument: id, Owner: sender})
		r.logger.Info("instrument activated", "instrument", id, "name", name, "variant", variant, "owner", sender)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeactivateInstrument deactivates instrument id through its manager and
// settles the activation deposit per the deposit policy.
func (r *Registry) DeactivateInstrument(sender ir.Address, id ir.InstrumentID) error {
	return r.atomic("deactivate", func(ir.Timestamp) error {
		m, err := r.LookupInstrumentManager(id)
		if err != nil {
			return err
		}
		if amount := r.held[id]; amount > 0 {
			holder := heldBy(id)
			ev := ir.Event{Instrument: id, Asset: r.asset, Amount: amount}
			if r.policy == PolicyRefund {
				owner := m.Config().Owner
				if err := r.wallet.Transfer(holder, owner, r.asset, amount); err != nil {
					return err
				}
				ev.Kind, ev.Owner = ir.EventDepositRefunded, owner
			} else {
				if err := r.wallet.Withdraw(holder, r.asset, amount); err != nil {
					return err
				}
				ev.Kind, ev.Owner = ir.EventDepositBurned, holder
			}
			delete(r.held, id)
			r.scope.Journal.Record(func() { r.held[id] = amount })
			r.scope.Sink.Emit(ev)
		}
		// Last, so a refused deactivation rolls the deposit back and the
		// deactivation event follows the settlement in the buffer.
		return m.Deactivate(sender)
	})
}

// publish forwards manager events. Inside a registry action they join its
// buffer behind the registry's own events and are dropped on rollback.
func (r *Registry) publish(e ir.Event) {
	if r.scope.Sink != nil {
		r.scope.Sink.Emit(e)
		return
	}
	r.sink.Emit(e)
}

// heldBy is the wallet owner under which an instrument's activation
// deposit is held.
func heldBy(id ir.InstrumentID) ir.Address {
	return ir.Address(manager.InstrumentEscrowID(id))
}
