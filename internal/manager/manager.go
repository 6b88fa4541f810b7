// Package manager implements the Instrument Manager: the sole mutator of an
// instrument's escrow ledgers and the factory of its issuances.
//
// Every mutating operation runs as one all-or-nothing unit. The manager
// installs a fresh undo journal and event buffer in the scope shared by its
// ledgers, runs the operation, and either rolls everything back (ledgers,
// issuance records, id allocation) or publishes the buffered events.
//
// Manager performs no locking; the host serializes actions.
package manager

import (
	"fmt"
	"log/slog"

	"github.com/roach88/instrumentd/internal/dispatch"
	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// DepositHolder is the owner under which an issuance escrow holds the
// registry issuance deposit.
const DepositHolder ir.Address = "registry"

// Deposits is the registry context threaded into a manager: the issuance
// deposit it must collect and what happens to it at the end.
type Deposits interface {
	DepositAsset() ir.AssetID
	IssuanceDeposit() int64
	RefundDeposits() bool
}

// NoDeposits is a Deposits that collects nothing.
type NoDeposits struct{}

func (NoDeposits) DepositAsset() ir.AssetID { return "" }
func (NoDeposits) IssuanceDeposit() int64 { return 0 }
func (NoDeposits) RefundDeposits() bool { return false }

// Config describes one activated instrument.
type Config struct {
	Instrument ir.InstrumentID
	Name       string

	// Owner is the FSP that activated the instrument.
	Owner ir.Address

	// Admin may override escrow balances.
	Admin ir.Address

	NativeAsset ir.AssetID

	ActivatedAt ir.Timestamp

	// TerminatesAt is the earliest time the instrument may be deactivated
	// once no issuance is pending. Zero means never.
	TerminatesAt ir.Timestamp

	// OverrideAt is the earliest time the owner may deactivate regardless
	// of pending issuances. Zero means never.
	OverrideAt ir.Timestamp
}

// Manager owns one instrument escrow and the arenas of issuances and
// issuance escrows, both keyed by id.
type Manager struct {
	cfg        Config
	machine    *issuance.Machine
	dispatcher *dispatch.Dispatcher
	deposits   Deposits
	clock      ir.TimeSource
	sink       ir.EventSink
	logger     *slog.Logger

	scope       *escrow.Scope
	instrument  *escrow.Ledger
	escrows     map[ir.EscrowID]*escrow.Ledger
	issuances   []*issuance.Issuance
	deactivated bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDeposits threads the registry deposit context into the manager.
func WithDeposits(d Deposits) Option {
	return func(m *Manager) { m.deposits = d }
}

// WithSink sets where events of successful actions are published.
func WithSink(s ir.EventSink) Option {
	return func(m *Manager) { m.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a manager for an instrument of the given variant.
func New(cfg Config, variant issuance.Variant, clock ir.TimeSource, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		deposits: NoDeposits{},
		clock:    clock,
		sink:     ir.DiscardEvents,
		logger:   slog.Default(),
		scope:    &escrow.Scope{},
		escrows:  make(map[ir.EscrowID]*escrow.Ledger),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.NativeAsset == "" {
		m.cfg.NativeAsset = ir.NativeAsset
	}
	m.logger = m.logger.With("instrument", cfg.Instrument)
	m.machine = issuance.NewMachine(variant, m.logger)
	m.dispatcher = dispatch.New(m.machine, m.logger)
	m.instrument = m.newLedger(InstrumentEscrowID(cfg.Instrument))
	return m
}

// InstrumentEscrowID returns the escrow id of an instrument's escrow.
func InstrumentEscrowID(id ir.InstrumentID) ir.EscrowID {
	return ir.EscrowID(fmt.Sprintf("instrument/%d", id))
}

// IssuanceEscrowID returns the escrow id of an issuance's escrow.
func IssuanceEscrowID(instrument ir.InstrumentID, id ir.IssuanceID) ir.EscrowID {
	return ir.EscrowID(fmt.Sprintf("instrument/%d/issuance/%d", instrument, id))
}

func (m *Manager) newLedger(id ir.EscrowID) *escrow.Ledger {
	return escrow.New(id, m.cfg.Admin, escrow.WithScope(m.scope), escrow.WithNativeAsset(m.cfg.NativeAsset))
}

// atomic runs fn as one all-or-nothing action.
func (m *Manager) atomic(op string, fn func(now ir.Timestamp) error) error {
	journal := escrow.NewJournal()
	var buffered []ir.Event
	m.scope.Journal = journal
	m.scope.Sink = ir.EventSinkFunc(func(e ir.Event) { buffered = append(buffered, e) })
	defer func() {
		m.scope.Journal = nil
		m.scope.Sink = nil
	}()

	if err := fn(m.clock.Now()); err != nil {
		journal.Rollback()
		m.logger.Debug("action rolled back", "op", op, "undone", len(buffered), "error", err)
		return err
	}
	for _, e := range buffered {
		e.Instrument = m.cfg.Instrument
		m.sink.Emit(e)
	}
	return nil
}

// track snapshots an issuance record into the running action's journal.
func (m *Manager) track(iss *issuance.Issuance) {
	snap := iss.Clone()
	m.scope.Journal.Record(func() { *iss = *snap })
}

func (m *Manager) lookup(id ir.IssuanceID) (*issuance.Issuance, error) {
	if id < 1 || int(id) > len(m.issuances) {
		return nil, ir.NotFound("issuance", id)
	}
	return m.issuances[id-1], nil
}

// context builds the machine context for an action on iss.
func (m *Manager) context(iss *issuance.Issuance, sender ir.Address, now ir.Timestamp) *issuance.Context {
	return &issuance.Context{
		Issuance: iss,
		Sender:   sender,
		Now:      now,
		Funds:    &issuanceFunds{free: m.instrument, locked: m.escrows[iss.EscrowID]},
		Sink:     m.scope.Sink,
	}
}

func requireSender(sender ir.Address) error {
	if sender == "" {
		return ir.ValidationError("sender is required")
	}
	return nil
}
