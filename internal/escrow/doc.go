// Package escrow implements the multi-asset escrow ledger that custodies
// balances for an instrument and for each of its issuances.
//
// A Ledger never performs I/O and never locks. Atomicity across several
// ledgers comes from a shared Scope: the owning manager installs a fresh
// Journal before each action and rolls it back when the action fails.
package escrow
