package driver

import "github.com/google/uuid"

// TokenGenerator produces the correlation tokens that tie an injection's
// journal rows, deliveries, and log lines together.
type TokenGenerator interface {
	NewToken() string
}

// UUIDv7Tokens generates time-ordered UUIDv7 tokens, so tokens sort in
// injection order even across runs.
type UUIDv7Tokens struct{}

// NewToken returns a new UUIDv7 string.
func (UUIDv7Tokens) NewToken() string {
	return uuid.Must(uuid.NewV7()).String()
}
