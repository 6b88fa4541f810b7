// Package instruments provides the issuance variants: lending, borrowing and
// spot swap.
//
// Amounts derived from rates (collateral, interest) are computed exactly
// with decimal arithmetic and rounded down to whole minor units.
package instruments
