package cache

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/bomsync/internal/domain/shared"
)

// NewIdempotencyStore returns a Redis store when client is non-nil and falls
// back to an in-memory store otherwise
func NewIdempotencyStore(client redis.UniversalClient, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, "")
	}
	logger.Warn("Redis not configured, using in-memory idempotency store. " +
		"Duplicate order webhooks may be processed again by other instances.")
	return NewInMemoryIdempotencyStore()
}
