package shared

import (
	"context"
	"time"
)

// IdempotencyStore claims keys for a limited time so that work triggered by
// a redelivered message runs once. Keys are business keys where the message
// has one (an order reference) and event IDs otherwise.
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call made the
	// claim. It returns false while an earlier claim is still live.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key holds a live claim
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
