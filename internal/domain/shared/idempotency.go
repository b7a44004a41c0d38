package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so a retried mutation is not applied twice
type IdempotencyStore interface {
	// MarkProcessed records the key with a TTL.
	// Returns true if the key was newly recorded, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget removes a key, used when the guarded operation failed before committing
	Forget(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// DefaultIdempotencyTTL bounds how long payment request keys are remembered
const DefaultIdempotencyTTL = 24 * time.Hour
