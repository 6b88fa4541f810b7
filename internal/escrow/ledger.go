package escrow

import (
	"math"
	"slices"

	"github.com/roach88/instrumentd/internal/ir"
)

// Direction selects the effect of an admin override.
type Direction int

const (
	// Credit adds to the owner's balance.
	Credit Direction = iota
	// Debit removes from the owner's balance.
	Debit
)

// String returns "credit" or "debit".
func (d Direction) String() string {
	if d == Debit {
		return "debit"
	}
	return "credit"
}

// Reader is the read-only view of a ledger handed to callers outside the
// owning manager.
type Reader interface {
	ID() ir.EscrowID
	Balance(owner ir.Address) int64
	AssetBalance(owner ir.Address, asset ir.AssetID) int64
	AssetList(owner ir.Address) []ir.AssetID
	Total(asset ir.AssetID) int64
	Owners() []ir.Address
	Holdings() []Holding
	Frozen() bool
	Empty() bool
}

// Holding is one non-zero (owner, asset) balance.
type Holding struct {
	Owner  ir.Address `json:"owner"`
	Asset  ir.AssetID `json:"asset"`
	Amount int64      `json:"amount"`
}

// Ledger custodies multi-asset balances per owner.
//
// Invariants:
//   - no balance is ever negative
//   - totals[asset] equals the sum of every owner's balance of asset
//   - an asset is in assets[owner] iff its balance is non-zero, in
//     first-deposit order
//
// Ledger performs no locking; every mutation is validated before any state
// changes, and its inverse is recorded in the scope's journal.
type Ledger struct {
	id     ir.EscrowID
	admin  ir.Address
	native ir.AssetID
	scope  *Scope

	balances map[ir.Address]map[ir.AssetID]int64
	assets   map[ir.Address][]ir.AssetID
	owners   []ir.Address
	totals   map[ir.AssetID]int64
	frozen   bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNativeAsset overrides the ledger's native asset (default ir.NativeAsset).
func WithNativeAsset(asset ir.AssetID) Option {
	return func(l *Ledger) { l.native = asset }
}

// WithScope shares a per-action scope with the ledger. Ledgers of the same
// manager share one scope so an action can be undone across all of them.
func WithScope(s *Scope) Option {
	return func(l *Ledger) { l.scope = s }
}

// New creates an empty ledger administered by admin.
func New(id ir.EscrowID, admin ir.Address, opts ...Option) *Ledger {
	l := &Ledger{
		id:       id,
		admin:    admin,
		native:   ir.NativeAsset,
		scope:    &Scope{},
		balances: make(map[ir.Address]map[ir.AssetID]int64),
		assets:   make(map[ir.Address][]ir.AssetID),
		totals:   make(map[ir.AssetID]int64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID returns the ledger's escrow id.
func (l *Ledger) ID() ir.EscrowID { return l.id }

// Admin returns the address allowed to perform admin overrides.
func (l *Ledger) Admin() ir.Address { return l.admin }

// NativeAsset returns the ledger's native asset.
func (l *Ledger) NativeAsset() ir.AssetID { return l.native }

// Deposit credits amount of asset to owner.
func (l *Ledger) Deposit(owner ir.Address, asset ir.AssetID, amount int64) error {
	if err := l.checkMutable(amount); err != nil {
		return err
	}
	if err := l.checkCapacity(owner, asset, amount); err != nil {
		return err
	}
	if total := l.totals[asset]; total > math.MaxInt64-amount {
		return ir.AmountOverflow(owner, asset, total, amount)
	}
	l.credit(owner, asset, amount)
	return nil
}

// Withdraw debits amount of asset from owner.
func (l *Ledger) Withdraw(owner ir.Address, asset ir.AssetID, amount int64) error {
	if err := l.checkMutable(amount); err != nil {
		return err
	}
	if bal := l.AssetBalance(owner, asset); bal < amount {
		return ir.InsufficientBalance(owner, asset, bal, amount)
	}
	l.debit(owner, asset, amount)
	return nil
}

// Transfer moves amount of asset from one owner to another. Both sides apply
// or neither does.
func (l *Ledger) Transfer(from, to ir.Address, asset ir.AssetID, amount int64) error {
	if from != to {
		if err := l.checkCapacity(to, asset, amount); err != nil {
			return err
		}
	}
	if err := l.Withdraw(from, asset, amount); err != nil {
		return err
	}
	l.credit(to, asset, amount)
	return nil
}

// DepositNative credits the native asset.
func (l *Ledger) DepositNative(owner ir.Address, amount int64) error {
	return l.Deposit(owner, l.native, amount)
}

// WithdrawNative debits the native asset.
func (l *Ledger) WithdrawNative(owner ir.Address, amount int64) error {
	return l.Withdraw(owner, l.native, amount)
}

// DepositByAdmin credits owner on the admin's authority.
func (l *Ledger) DepositByAdmin(caller, owner ir.Address, asset ir.AssetID, amount int64) error {
	return l.Override(caller, owner, asset, amount, Credit)
}

// WithdrawByAdmin debits owner on the admin's authority.
func (l *Ledger) WithdrawByAdmin(caller, owner ir.Address, asset ir.AssetID, amount int64) error {
	return l.Override(caller, owner, asset, amount, Debit)
}

// Override adjusts owner's balance on the admin's authority. The usual
// amount and balance rules still apply.
func (l *Ledger) Override(caller, owner ir.Address, asset ir.AssetID, amount int64, dir Direction) error {
	if caller != l.admin {
		return ir.Unauthorized(caller, "only the escrow admin may override balances")
	}
	if dir == Debit {
		return l.Withdraw(owner, asset, amount)
	}
	return l.Deposit(owner, asset, amount)
}

// Freeze rejects every later mutation.
func (l *Ledger) Freeze() {
	if l.frozen {
		return
	}
	l.frozen = true
	l.scope.Journal.Record(func() { l.frozen = false })
	l.scope.emit(ir.Event{Kind: ir.EventEscrowFrozen, Escrow: l.id})
}

// Frozen reports whether the ledger has been frozen.
func (l *Ledger) Frozen() bool { return l.frozen }

// Balance returns owner's native balance.
func (l *Ledger) Balance(owner ir.Address) int64 {
	return l.AssetBalance(owner, l.native)
}

// AssetBalance returns owner's balance of asset; unset entries are zero.
func (l *Ledger) AssetBalance(owner ir.Address, asset ir.AssetID) int64 {
	return l.balances[owner][asset]
}

// AssetList returns the assets owner holds a non-zero balance of, in
// first-deposit order. The native asset is excluded.
func (l *Ledger) AssetList(owner ir.Address) []ir.AssetID {
	out := make([]ir.AssetID, 0, len(l.assets[owner]))
	for _, a := range l.assets[owner] {
		if a != l.native {
			out = append(out, a)
		}
	}
	return out
}

// Total returns the sum of every owner's balance of asset.
func (l *Ledger) Total(asset ir.AssetID) int64 {
	return l.totals[asset]
}

// Owners returns the owners holding any non-zero balance, in first-deposit order.
func (l *Ledger) Owners() []ir.Address {
	out := make([]ir.Address, 0, len(l.owners))
	for _, o := range l.owners {
		if len(l.assets[o]) > 0 {
			out = append(out, o)
		}
	}
	return out
}

// Holdings returns every non-zero balance, ordered by owner then asset
// first-deposit order. The native asset is included.
func (l *Ledger) Holdings() []Holding {
	out := []Holding{}
	for _, o := range l.Owners() {
		for _, a := range l.assets[o] {
			out = append(out, Holding{Owner: o, Asset: a, Amount: l.balances[o][a]})
		}
	}
	return out
}

// Empty reports whether the ledger holds nothing at all.
func (l *Ledger) Empty() bool {
	for _, t := range l.totals {
		if t != 0 {
			return false
		}
	}
	return true
}

func (l *Ledger) checkMutable(amount int64) error {
	if amount <= 0 {
		return ir.InvalidAmount(amount)
	}
	if l.frozen {
		return ir.InvalidStatef("escrow %s is frozen", l.id)
	}
	return nil
}

// checkCapacity rejects a credit that would push owner's balance past
// math.MaxInt64. Callers validate amount first.
func (l *Ledger) checkCapacity(owner ir.Address, asset ir.AssetID, amount int64) error {
	if bal := l.AssetBalance(owner, asset); bal > math.MaxInt64-amount {
		return ir.AmountOverflow(owner, asset, bal, amount)
	}
	return nil
}

func (l *Ledger) credit(owner ir.Address, asset ir.AssetID, amount int64) {
	l.snapshot(owner, asset)
	if _, seen := l.balances[owner]; !seen {
		l.balances[owner] = make(map[ir.AssetID]int64)
		l.owners = append(l.owners, owner)
	}
	if l.balances[owner][asset] == 0 {
		l.assets[owner] = append(l.assets[owner], asset)
	}
	l.balances[owner][asset] += amount
	l.totals[asset] += amount
	l.scope.emit(ir.Event{
		Kind:   ir.EventBalanceIncreased,
		Escrow: l.id,
		Owner:  owner,
		Asset:  asset,
		Amount: amount,
	})
}

func (l *Ledger) debit(owner ir.Address, asset ir.AssetID, amount int64) {
	l.snapshot(owner, asset)
	l.balances[owner][asset] -= amount
	l.totals[asset] -= amount
	if l.balances[owner][asset] == 0 {
		delete(l.balances[owner], asset)
		l.assets[owner] = slices.DeleteFunc(slices.Clone(l.assets[owner]), func(a ir.AssetID) bool {
			return a == asset
		})
	}
	l.scope.emit(ir.Event{
		Kind:   ir.EventBalanceDecreased,
		Escrow: l.id,
		Owner:  owner,
		Asset:  asset,
		Amount: amount,
	})
}

// snapshot records the exact prior state of one (owner, asset) entry so
// rollback restores balances and asset order alike.
func (l *Ledger) snapshot(owner ir.Address, asset ir.AssetID) {
	j := l.scope.Journal
	if j == nil {
		return
	}
	_, seen := l.balances[owner]
	bal, had := l.balances[owner][asset]
	list := slices.Clone(l.assets[owner])
	total := l.totals[asset]
	owners := len(l.owners)

	j.Record(func() {
		l.totals[asset] = total
		if total == 0 {
			delete(l.totals, asset)
		}
		l.assets[owner] = list
		if len(list) == 0 {
			delete(l.assets, owner)
		}
		if !seen {
			delete(l.balances, owner)
			l.owners = l.owners[:owners]
			return
		}
		if had {
			l.balances[owner][asset] = bal
		} else {
			delete(l.balances[owner], asset)
		}
	})
}
