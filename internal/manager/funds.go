package manager

import (
	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/ir"
)

// issuanceFunds implements issuance.Funds for one issuance: free balances in
// the instrument escrow, locked balances in the issuance escrow.
type issuanceFunds struct {
	free   *escrow.Ledger
	locked *escrow.Ledger
}

func (f *issuanceFunds) Custodian() ir.Address {
	return ir.Address(f.locked.ID())
}

func (f *issuanceFunds) FreeBalance(owner ir.Address, asset ir.AssetID) int64 {
	return f.free.AssetBalance(owner, asset)
}

func (f *issuanceFunds) LockedBalance(owner ir.Address, asset ir.AssetID) int64 {
	return f.locked.AssetBalance(owner, asset)
}

func (f *issuanceFunds) LockedAssets(owner ir.Address) []ir.AssetID {
	assets := f.locked.AssetList(owner)
	if f.locked.Balance(owner) > 0 {
		assets = append([]ir.AssetID{f.locked.NativeAsset()}, assets...)
	}
	return assets
}

func (f *issuanceFunds) Lock(owner ir.Address, asset ir.AssetID, amount int64) error {
	if err := f.free.Withdraw(owner, asset, amount); err != nil {
		return err
	}
	return f.locked.Deposit(owner, asset, amount)
}

func (f *issuanceFunds) Release(owner ir.Address, asset ir.AssetID, amount int64) error {
	if err := f.locked.Withdraw(owner, asset, amount); err != nil {
		return err
	}
	return f.free.Deposit(owner, asset, amount)
}

func (f *issuanceFunds) Reassign(from, to ir.Address, asset ir.AssetID, amount int64) error {
	return f.locked.Transfer(from, to, asset, amount)
}
