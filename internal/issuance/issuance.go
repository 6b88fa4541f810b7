package issuance

import (
	"slices"

	"github.com/roach88/instrumentd/internal/ir"
)

// Terms are the variant-validated creation parameters of an issuance. Each
// variant stores its own concrete type and replaces (never mutates) the
// value when derived amounts become known.
type Terms any

// Issuance is one agreement between a maker and, once engaged, a taker.
// Records live in the manager's arena and reference their escrow by id.
type Issuance struct {
	ID         ir.IssuanceID
	Instrument ir.InstrumentID
	Variant    string
	Maker      ir.Address
	Taker      ir.Address
	State      ir.IssuanceState
	EscrowID   ir.EscrowID

	CreatedAt       ir.Timestamp
	EngagementDueAt ir.Timestamp
	IssuanceDueAt   ir.Timestamp
	EngagedAt       ir.Timestamp
	SettledAt       ir.Timestamp

	LineItems []ir.LineItem
	Terms     Terms

	// Deposit is the registry issuance deposit held for this issuance;
	// DepositSettled is set once it has been burned or refunded.
	Deposit        int64
	DepositSettled bool
}

// Clone returns a deep copy.
func (i *Issuance) Clone() *Issuance {
	c := *i
	c.LineItems = slices.Clone(i.LineItems)
	return &c
}

// Properties returns the structured record exposed through custom data.
func (i *Issuance) Properties() ir.IssuanceProperties {
	items := slices.Clone(i.LineItems)
	if items == nil {
		items = []ir.LineItem{}
	}
	return ir.IssuanceProperties{
		IssuanceID:      i.ID,
		Maker:           i.Maker,
		Taker:           i.Taker,
		EngagementDueAt: i.EngagementDueAt,
		IssuanceDueAt:   i.IssuanceDueAt,
		CreatedAt:       i.CreatedAt,
		EngagedAt:       i.EngagedAt,
		SettledAt:       i.SettledAt,
		EscrowID:        i.EscrowID,
		State:           i.State,
		LineItems:       items,
	}
}

// LineItem returns a pointer to the line item with the given id, or nil.
func (i *Issuance) LineItem(id int64) *ir.LineItem {
	for k := range i.LineItems {
		if i.LineItems[k].ID == id {
			return &i.LineItems[k]
		}
	}
	return nil
}
