package instruments

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/roach88/instrumentd/internal/ir"
)

// PriceOracle quotes how many units of quote one unit of base is worth, as
// the exact fraction num/den.
type PriceOracle interface {
	Rate(base, quote ir.AssetID) (num, den int64, err error)
}

// Pair is an ordered asset pair.
type Pair struct {
	Base  ir.AssetID
	Quote ir.AssetID
}

// StaticOracle serves a fixed rate table. A rate registered for (A, B) also
// answers (B, A) with the inverted fraction.
type StaticOracle struct {
	rates map[Pair][2]int64
}

// NewStaticOracle creates an empty rate table.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{rates: make(map[Pair][2]int64)}
}

// Set registers base -> quote = num/den.
func (o *StaticOracle) Set(base, quote ir.AssetID, num, den int64) error {
	if num <= 0 || den <= 0 {
		return ir.ValidationError("rate %s/%s must be positive, got %d/%d", base, quote, num, den)
	}
	if base == quote {
		return ir.ValidationError("rate pair %s/%s must name two assets", base, quote)
	}
	o.rates[Pair{Base: base, Quote: quote}] = [2]int64{num, den}
	return nil
}

// Rate implements PriceOracle.
func (o *StaticOracle) Rate(base, quote ir.AssetID) (int64, int64, error) {
	if base == quote {
		return 1, 1, nil
	}
	if r, ok := o.rates[Pair{Base: base, Quote: quote}]; ok {
		return r[0], r[1], nil
	}
	if r, ok := o.rates[Pair{Base: quote, Quote: base}]; ok {
		return r[1], r[0], nil
	}
	return 0, 0, ir.ValidationError("no rate for %s/%s", base, quote)
}

const (
	bpsScale      = 10000
	interestScale = 1000000
)

// collateralFor returns amount * rate(base->collateral) * ratio / 10000,
// rounded down.
func collateralFor(oracle PriceOracle, base, collateral ir.AssetID, amount, ratioBps int64) (int64, error) {
	num, den, err := oracle.Rate(base, collateral)
	if err != nil {
		return 0, err
	}
	v := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(num)).
		Mul(decimal.NewFromInt(ratioBps)).
		Div(decimal.NewFromInt(den).Mul(decimal.NewFromInt(bpsScale)))
	return toAmount(v, "collateral")
}

// interestFor returns amount * rate * days / 1e6, rounded down. The rate is
// per day in millionths.
func interestFor(amount, ratePerDay, days int64) (int64, error) {
	v := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(ratePerDay)).
		Mul(decimal.NewFromInt(days)).
		Div(decimal.NewFromInt(interestScale))
	return toAmount(v, "interest")
}

var maxAmount = decimal.NewFromInt(1<<63 - 1)

func toAmount(v decimal.Decimal, what string) (int64, error) {
	v = v.Floor()
	if v.GreaterThan(maxAmount) {
		return 0, ir.ValidationError("%s amount %s overflows", what, v.String())
	}
	return v.IntPart(), nil
}

func formatInt(n int64) string { return fmt.Sprintf("%d", n) }
