package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/bomsync/internal/domain/bom"
)

const (
	// DefaultLockPollInterval is how often a blocked Acquire retries
	DefaultLockPollInterval = 50 * time.Millisecond
	// DefaultLockKeyPrefix namespaces lock keys in Redis
	DefaultLockKeyPrefix = "lock:"

	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only when it still holds our token, so a lock
// that expired and was taken by another process is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL (ARGV[2], milliseconds) of a key we still own
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// SyncLockOption configures a sync lock
type SyncLockOption func(*syncLockOptions)

type syncLockOptions struct {
	pollInterval time.Duration
	keyPrefix    string
	logger       *zap.Logger
	renew        bool
}

// WithPollInterval sets how often a blocked Acquire retries
func WithPollInterval(d time.Duration) SyncLockOption {
	return func(o *syncLockOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) SyncLockOption {
	return func(o *syncLockOptions) {
		o.keyPrefix = prefix
	}
}

// WithLockLogger sets the logger used for release failures
func WithLockLogger(logger *zap.Logger) SyncLockOption {
	return func(o *syncLockOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithoutRenewal lets a lease lapse at its ttl even while it is held. By
// default a held lease is extended every third of its ttl until released.
func WithoutRenewal() SyncLockOption {
	return func(o *syncLockOptions) {
		o.renew = false
	}
}

func newSyncLockOptions(opts []SyncLockOption) syncLockOptions {
	o := syncLockOptions{
		pollInterval: DefaultLockPollInterval,
		keyPrefix:    DefaultLockKeyPrefix,
		logger:       zap.NewNop(),
		renew:        true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSyncLock returns a Redis-backed lock when client is non-nil and an
// in-process lock otherwise
func NewSyncLock(client redis.UniversalClient, opts ...SyncLockOption) bom.SyncLocker {
	if client == nil {
		return NewInMemorySyncLock(opts...)
	}
	return NewRedisSyncLock(client, opts...)
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// RedisSyncLock is a lease lock shared across processes through Redis
type RedisSyncLock struct {
	client redis.UniversalClient
	opts   syncLockOptions
}

// NewRedisSyncLock creates a Redis lock on an existing client
func NewRedisSyncLock(client redis.UniversalClient, opts ...SyncLockOption) *RedisSyncLock {
	return &RedisSyncLock{
		client: client,
		opts:   newSyncLockOptions(opts),
	}
}

// TryAcquire makes a single SET NX attempt
func (l *RedisSyncLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lock %s: ttl must be positive", key)
	}
	token, err := newLockToken()
	if err != nil {
		return nil, false, err
	}

	redisKey := l.opts.keyPrefix + key
	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.releaser(redisKey, token, ttl), true, nil
}

// Acquire polls until the lock is held or ctx is done
func (l *RedisSyncLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(l.opts.pollInterval)
	defer ticker.Stop()

	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}
		if ok {
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisSyncLock) releaser(redisKey, token string, ttl time.Duration) func() {
	var keeper *leaseKeeper
	if l.opts.renew {
		keeper = startLeaseKeeper(redisKey, ttl, l.opts.logger, func(ctx context.Context) (bool, error) {
			n, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, ttl.Milliseconds()).Int64()
			return n == 1, err
		})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			keeper.halt()

			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int64()
			switch {
			case err != nil && !errors.Is(err, redis.Nil):
				l.opts.logger.Warn("failed to release sync lock",
					zap.String("key", redisKey),
					zap.Error(err),
				)
			case n == 0:
				l.opts.logger.Warn("sync lock lease lost before release", zap.String("key", redisKey))
			}
		})
	}
}

func newLockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// InMemorySyncLock serialises holders of the same key within one process.
// Leases expire after ttl like their Redis counterparts.
type InMemorySyncLock struct {
	mu     sync.Mutex
	leases map[string]lease
	seq    uint64
	opts   syncLockOptions
}

type lease struct {
	id        uint64
	expiresAt time.Time
}

// NewInMemorySyncLock creates an in-process lock
func NewInMemorySyncLock(opts ...SyncLockOption) *InMemorySyncLock {
	return &InMemorySyncLock{
		leases: make(map[string]lease),
		opts:   newSyncLockOptions(opts),
	}
}

// TryAcquire takes the lease when it is free or expired
func (l *InMemorySyncLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if ttl <= 0 {
		return nil, false, fmt.Errorf("lock %s: ttl must be positive", key)
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.leases[key]; ok && now.Before(held.expiresAt) {
		return nil, false, nil
	}
	l.seq++
	id := l.seq
	l.leases[key] = lease{id: id, expiresAt: now.Add(ttl)}

	var keeper *leaseKeeper
	if l.opts.renew {
		keeper = startLeaseKeeper(key, ttl, l.opts.logger, func(context.Context) (bool, error) {
			return l.extend(key, id, ttl), nil
		})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			keeper.halt()

			l.mu.Lock()
			defer l.mu.Unlock()
			if held, ok := l.leases[key]; ok && held.id == id {
				delete(l.leases, key)
				return
			}
			l.opts.logger.Warn("sync lock lease lost before release", zap.String("key", key))
		})
	}, true, nil
}

// extend pushes out an unexpired lease that still carries id
func (l *InMemorySyncLock) extend(key string, id uint64, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	held, ok := l.leases[key]
	if !ok || held.id != id || !now.Before(held.expiresAt) {
		return false
	}
	l.leases[key] = lease{id: id, expiresAt: now.Add(ttl)}
	return true
}

// Acquire polls until the lease is held or ctx is done
func (l *InMemorySyncLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ticker := time.NewTicker(l.opts.pollInterval)
	defer ticker.Stop()

	for {
		release, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Held reports whether key is currently leased (for testing/monitoring)
func (l *InMemorySyncLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.leases[key]
	return ok && time.Now().Before(held.expiresAt)
}

// ---------------------------------------------------------------------------
// Renewal
// ---------------------------------------------------------------------------

// leaseKeeper extends a held lease every third of its ttl until halted, so a
// sync slowed by the platform keeps its target. It gives up once extend
// reports that the lease is no longer ours.
type leaseKeeper struct {
	stop chan struct{}
	done chan struct{}
}

func startLeaseKeeper(key string, ttl time.Duration, logger *zap.Logger, extend func(ctx context.Context) (bool, error)) *leaseKeeper {
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}
	k := &leaseKeeper{stop: make(chan struct{}), done: make(chan struct{})}

	go func() {
		defer close(k.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-k.stop:
				return
			case <-ticker.C:
			}

			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := extend(ctx)
			cancel()
			if err != nil {
				logger.Warn("failed to extend sync lock", zap.String("key", key), zap.Error(err))
				continue
			}
			if !held {
				logger.Warn("sync lock lease lost while held", zap.String("key", key))
				return
			}
		}
	}()
	return k
}

// halt stops renewal and waits for the keeper to exit. A nil keeper is a no-op.
func (k *leaseKeeper) halt() {
	if k == nil {
		return
	}
	close(k.stop)
	<-k.done
}

var (
	_ bom.SyncLocker = (*RedisSyncLock)(nil)
	_ bom.SyncLocker = (*InMemorySyncLock)(nil)
)
