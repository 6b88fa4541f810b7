package instruments

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/instrumentd/internal/ir"
)

// Variant names.
const (
	Lending   = "lending"
	Borrowing = "borrowing"
	SpotSwap  = "spot_swap"
)

// Parameter ranges shared by lending and borrowing.
const (
	MinTenorDays       = 2
	MaxTenorDays       = 90
	MinCollateralRatio = 5000
	MaxCollateralRatio = 20000
	MinInterestRate    = 10
	MaxInterestRate    = 50000

	MinSwapDays = 1
	MaxSwapDays = 90

	// EngagementWindowDays is how long a lending or borrowing issuance
	// stays open for a taker.
	EngagementWindowDays = 14
)

// decodeParams strictly decodes a JSON parameter object.
func decodeParams(params []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ir.ValidationError("invalid parameters: %v", err)
	}
	return nil
}

func checkRange(field string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return ir.ValidationError("%s must be in [%d, %d], got %d", field, lo, hi, v)
	}
	return nil
}

func checkPositive(field string, v int64) error {
	if v <= 0 {
		return ir.ValidationError("%s must be positive, got %d", field, v)
	}
	return nil
}

func checkAssets(a, b ir.AssetID, aField, bField string) error {
	if a == "" {
		return ir.ValidationError("%s is required", aField)
	}
	if b == "" {
		return ir.ValidationError("%s is required", bField)
	}
	if a == b {
		return ir.ValidationError("%s and %s must differ", aField, bField)
	}
	return nil
}

// loanParams are the creation parameters common to lending and borrowing.
type loanParams struct {
	CollateralAsset ir.AssetID
	LoanAsset       ir.AssetID
	Amount          int64
	TenorDays       int64
	CollateralRatio int64
	InterestRate    int64
}

func (p loanParams) validate(loanField, amountField string) error {
	if err := checkAssets(p.CollateralAsset, p.LoanAsset, "collateral_asset", loanField); err != nil {
		return err
	}
	if err := checkPositive(amountField, p.Amount); err != nil {
		return err
	}
	if err := checkRange("tenor_days", p.TenorDays, MinTenorDays, MaxTenorDays); err != nil {
		return err
	}
	if err := checkRange("collateral_ratio", p.CollateralRatio, MinCollateralRatio, MaxCollateralRatio); err != nil {
		return err
	}
	return checkRange("interest_rate", p.InterestRate, MinInterestRate, MaxInterestRate)
}
