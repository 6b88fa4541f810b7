// Package issuance implements the state machine shared by every instrument
// variant.
//
// States follow one graph:
//
//	Initiated -> Engageable -> {Engaged | Unfunded | Cancelled | CompleteNotEngaged}
//	Engaged   -> {CompleteEngaged | Delinquent}
//
// Variants plug in through the Variant interface and move balances only
// through Funds, which the instrument manager implements on top of its
// escrow ledgers.
package issuance
