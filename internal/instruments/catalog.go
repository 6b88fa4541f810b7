package instruments

import (
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// Names lists the known variants in a stable order.
func Names() []string {
	return []string{Lending, Borrowing, SpotSwap}
}

// New returns the variant registered under name.
func New(name string, oracle PriceOracle) (issuance.Variant, error) {
	switch name {
	case Lending:
		return NewLending(oracle), nil
	case Borrowing:
		return NewBorrowing(oracle), nil
	case SpotSwap:
		return NewSpotSwap(), nil
	}
	return nil, ir.ValidationError("unknown instrument variant %q", name)
}
