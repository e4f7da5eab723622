package submission

import "github.com/google/uuid"

// IDGenerator produces attempt ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable attempt ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
