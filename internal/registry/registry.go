// Package registry activates instruments and owns the deposits that gate
// them.
//
// The registry keeps a wallet ledger in the deposit asset. FSPs fund it
// before activating an instrument; the activation deposit stays in the
// wallet under the instrument's escrow id until deactivation, when it is
// burned or refunded according to the deposit policy. The registry is also
// the deposit context of every manager it builds, which collects the
// issuance deposit from makers.
package registry

import (
	"log/slog"

	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/instruments"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/manager"
)

// WalletEscrowID is the id of the registry wallet ledger.
const WalletEscrowID ir.EscrowID = "registry"

// DefaultDepositAsset is the deposit asset when none is configured.
const DefaultDepositAsset ir.AssetID = "NUTS"

// Policy decides what happens to a deposit once its purpose has ended.
type Policy string

const (
	PolicyBurn   Policy = "burn"
	PolicyRefund Policy = "refund"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyBurn, PolicyRefund:
		return p, nil
	}
	return "", ir.ValidationError("unknown deposit policy %q", s)
}

// InstrumentParams are the activation settings of one instrument.
type InstrumentParams struct {
	// Admin may override the instrument's escrow balances. Defaults to the
	// registry owner.
	Admin ir.Address

	NativeAsset ir.AssetID

	TerminatesAt ir.Timestamp
	OverrideAt   ir.Timestamp
}

// Registry is the instrument registry.
type Registry struct {
	owner             ir.Address
	asset             ir.AssetID
	instrumentDeposit int64
	issuanceDeposit   int64
	policy            Policy
	oracle            instruments.PriceOracle
	clock             ir.TimeSource
	sink              ir.EventSink
	logger            *slog.Logger

	scope    *escrow.Scope
	wallet   *escrow.Ledger
	managers []*manager.Manager
	byName   map[string]ir.InstrumentID
	held     map[ir.InstrumentID]int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithDepositAsset sets the asset deposits are paid in.
func WithDepositAsset(a ir.AssetID) Option {
	return func(r *Registry) { r.asset = a }
}

// WithInstrumentDeposit sets the activation deposit.
func WithInstrumentDeposit(amount int64) Option {
	return func(r *Registry) { r.instrumentDeposit = amount }
}

// WithIssuanceDeposit sets the per-issuance deposit.
func WithIssuanceDeposit(amount int64) Option {
	return func(r *Registry) { r.issuanceDeposit = amount }
}

// WithPolicy sets the deposit policy.
func WithPolicy(p Policy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithOracle sets the price oracle handed to lending and borrowing
// instruments.
func WithOracle(o instruments.PriceOracle) Option {
	return func(r *Registry) { r.oracle = o }
}

// WithClock sets the time source shared by every instrument.
func WithClock(c ir.TimeSource) Option {
	return func(r *Registry) { r.clock = c }
}

// WithSink sets where events of successful actions are published, for the
// registry and every instrument it activates.
func WithSink(s ir.EventSink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a registry administered by owner.
func New(owner ir.Address, opts ...Option) *Registry {
	r := &Registry{
		owner:  owner,
		asset:  DefaultDepositAsset,
		policy: PolicyBurn,
		oracle: instruments.NewStaticOracle(),
		clock:  ir.FixedTime(0),
		sink:   ir.DiscardEvents,
		logger: slog.Default(),
		scope:  &escrow.Scope{},
		byName: make(map[string]ir.InstrumentID),
		held:   make(map[ir.InstrumentID]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.wallet = escrow.New(WalletEscrowID, owner, escrow.WithScope(r.scope))
	return r
}

// Owner returns the registry owner.
func (r *Registry) Owner() ir.Address { return r.owner }

// Policy returns the current deposit policy.
func (r *Registry) Policy() Policy { return r.policy }

// InstrumentDeposit returns the current activation deposit.
func (r *Registry) InstrumentDeposit() int64 { return r.instrumentDeposit }

// DepositAsset implements manager.Deposits.
func (r *Registry) DepositAsset() ir.AssetID { return r.asset }

// IssuanceDeposit implements manager.Deposits.
func (r *Registry) IssuanceDeposit() int64 { return r.issuanceDeposit }

// RefundDeposits implements manager.Deposits.
func (r *Registry) RefundDeposits() bool { return r.policy == PolicyRefund }

// Wallet returns a read-only view of the registry wallet.
func (r *Registry) Wallet() escrow.Reader { return r.wallet }

// Held returns the activation deposit held for instrument id.
func (r *Registry) Held(id ir.InstrumentID) int64 { return r.held[id] }

// Instruments returns every activated instrument in activation order.
func (r *Registry) Instruments() []*manager.Manager {
	out := make([]*manager.Manager, len(r.managers))
	copy(out, r.managers)
	return out
}

// LookupInstrumentManager returns the manager of instrument id.
func (r *Registry) LookupInstrumentManager(id ir.InstrumentID) (*manager.Manager, error) {
	if id < 1 || int(id) > len(r.managers) {
		return nil, ir.NotFound("instrument", id)
	}
	return r.managers[id-1], nil
}

// LookupByName returns the manager of the instrument activated as name.
func (r *Registry) LookupByName(name string) (*manager.Manager, error) {
	id, ok := r.byName[name]
	if !ok {
		return nil, ir.NotFound("instrument", name)
	}
	return r.managers[id-1], nil
}

// atomic runs fn as one all-or-nothing registry action.
func (r *Registry) atomic(op string, fn func(now ir.Timestamp) error) error {
	journal := escrow.NewJournal()
	var buffered []ir.Event
	r.scope.Journal = journal
	r.scope.Sink = ir.EventSinkFunc(func(e ir.Event) { buffered = append(buffered, e) })
	defer func() {
		r.scope.Journal = nil
		r.scope.Sink = nil
	}()

	if err := fn(r.clock.Now()); err != nil {
		journal.Rollback()
		r.logger.Debug("registry action rolled back", "op", op, "error", err)
		return err
	}
	for _, e := range buffered {
		r.sink.Emit(e)
	}
	return nil
}

func (r *Registry) requireOwner(sender ir.Address, what string) error {
	if sender != r.owner {
		return ir.Unauthorized(sender, "only the registry owner may "+what)
	}
	return nil
}
