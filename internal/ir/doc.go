// Package ir provides the canonical domain types shared by every layer of the
// issuance engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the domain vocabulary the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - amounts are int64 minor units, timestamps are
//     int64 Unix seconds
//   - Issuance states keep the numeric values of the external wire format
//   - All JSON tags use snake_case
//   - Event and action identities are content-addressed (see hash.go)
package ir
