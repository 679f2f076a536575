package repositories

import (
	"context"
	"time"
)

// IdempotencyStore remembers which request keys have already produced a result.
type IdempotencyStore interface {
	// Claim reserves key for ttl. Returns false if the key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the id produced for key.
	Complete(ctx context.Context, key, resultID string, ttl time.Duration) error

	// Release drops a claim whose request failed so the caller may retry.
	Release(ctx context.Context, key string) error

	// Lookup returns the stored id; found with an empty id means in progress.
	Lookup(ctx context.Context, key string) (resultID string, found bool, err error)

	Close() error
}
