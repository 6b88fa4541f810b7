package issuance

import "github.com/roach88/instrumentd/internal/ir"

// Named events understood by every issuance.
const (
	EventCancel        = "cancel_issuance"
	EventEngagementDue = "engagement_due"
	EventIssuanceDue   = "issuance_due"
)

// Variant is the capability set of one instrument type. The Machine owns the
// state graph and calls into the variant for validation and fund movement.
//
// Hooks that return a state ask the Machine to move there; returning the
// current state leaves it unchanged.
type Variant interface {
	// Name is the variant tag stored on each issuance ("lending", ...).
	Name() string

	// DataKey is the custom-data key serving the variant's properties.
	DataKey() string

	// ValidateCreation parses and range-checks maker parameters.
	// Failures are ir.ValidationError.
	ValidateCreation(params []byte) (Terms, error)

	// OnCreate sets due timestamps and locks the maker's commitment.
	OnCreate(c *Context) error

	// OnEngage moves funds once the taker has been admitted. The issuance
	// is already Engaged when it is called.
	OnEngage(c *Context, data []byte) (ir.IssuanceState, error)

	// OnDeposit handles a mid-life contribution while Engaged.
	OnDeposit(c *Context, asset ir.AssetID, amount int64) (ir.IssuanceState, error)

	// OnDue handles an issuance-due check at or after the issuance due
	// timestamp while Engaged.
	OnDue(c *Context, event string) (ir.IssuanceState, error)

	// DueEvents lists variant-specific aliases of issuance_due.
	DueEvents() []string

	// Properties returns the variant fields exposed through custom data.
	Properties(iss *Issuance) []Property
}

// Property is one variant-specific custom-data field.
type Property struct {
	Key   string
	Value string
}

// Funds is the only way a variant reaches balances. Free balances live in
// the instrument escrow; locked balances live in the issuance escrow under
// the owner they were locked for.
type Funds interface {
	// Custodian is the identity of the issuance escrow, used as obligor of
	// obligations the escrow itself settles.
	Custodian() ir.Address

	FreeBalance(owner ir.Address, asset ir.AssetID) int64
	LockedBalance(owner ir.Address, asset ir.AssetID) int64

	// LockedAssets lists owner's locked assets in lock order, native included.
	LockedAssets(owner ir.Address) []ir.AssetID

	// Lock moves owner's free funds into the issuance escrow.
	Lock(owner ir.Address, asset ir.AssetID, amount int64) error

	// Release moves owner's locked funds back to their free balance.
	Release(owner ir.Address, asset ir.AssetID, amount int64) error

	// Reassign changes whose name locked funds are held under.
	Reassign(from, to ir.Address, asset ir.AssetID, amount int64) error
}
