package engine

import "github.com/google/uuid"

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens, so journal
// rows sort by submission time even across restarts.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
