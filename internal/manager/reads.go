package manager

import (
	"github.com/roach88/instrumentd/internal/codec"
	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// Config returns the instrument's configuration.
func (m *Manager) Config() Config { return m.cfg }

// Variant returns the instrument's variant name.
func (m *Manager) Variant() string { return m.machine.Variant().Name() }

// DataKey returns the custom data key of the variant's properties.
func (m *Manager) DataKey() string { return m.machine.Variant().DataKey() }

// Deactivated reports whether the instrument has been deactivated.
func (m *Manager) Deactivated() bool { return m.deactivated }

// InstrumentEscrowID returns the id of the instrument escrow.
func (m *Manager) InstrumentEscrowID() ir.EscrowID { return m.instrument.ID() }

// InstrumentEscrow returns a read-only view of the instrument escrow.
func (m *Manager) InstrumentEscrow() escrow.Reader { return m.instrument }

// IssuanceEscrow returns a read-only view of an issuance's escrow.
func (m *Manager) IssuanceEscrow(id ir.IssuanceID) (escrow.Reader, error) {
	iss, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.escrows[iss.EscrowID], nil
}

// IssuanceState returns the current state of issuance id.
func (m *Manager) IssuanceState(id ir.IssuanceID) (ir.IssuanceState, error) {
	iss, err := m.lookup(id)
	if err != nil {
		return ir.StateUnknown, err
	}
	return iss.State, nil
}

// Issuance returns a copy of issuance id.
func (m *Manager) Issuance(id ir.IssuanceID) (*issuance.Issuance, error) {
	iss, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return iss.Clone(), nil
}

// Count returns the number of issuances ever created.
func (m *Manager) Count() int { return len(m.issuances) }

// Pending returns the number of issuances not yet in a terminal state.
func (m *Manager) Pending() int {
	n := 0
	for _, iss := range m.issuances {
		if !iss.State.Terminal() {
			n++
		}
	}
	return n
}

// CustomData returns the binary custom data of issuance id under key:
// codec.KeyIssuanceData for the issuance properties, or the variant's data
// key for the issuance properties plus the variant's fields.
func (m *Manager) CustomData(id ir.IssuanceID, key string) ([]byte, error) {
	iss, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	variant := m.machine.Variant()
	switch key {
	case codec.KeyIssuanceData:
		return codec.EncodeIssuanceProperties(iss.Properties()), nil
	case variant.DataKey():
		props := variant.Properties(iss)
		entries := make([]codec.Property, len(props))
		for i, p := range props {
			entries[i] = codec.Property{Key: p.Key, Value: p.Value}
		}
		return codec.EncodeCompleteProperties(codec.CompleteProperties{
			Issuance:   iss.Properties(),
			Properties: entries,
		}), nil
	}
	return nil, ir.ValidationError("unknown custom data key %q", key).WithIssuance(id)
}

// TotalHeld returns the amount of asset held across the instrument escrow
// and every issuance escrow.
func (m *Manager) TotalHeld(asset ir.AssetID) int64 {
	total := m.instrument.Total(asset)
	for _, l := range m.escrows {
		total += l.Total(asset)
	}
	return total
}
