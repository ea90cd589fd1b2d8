package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand so expiry tests never sleep
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewInMemoryIdempotencyStore()
	store.nowFunc = clock.Now
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("first delivery is new, redelivery is not", func(t *testing.T) {
		store, _ := newClockedStore()

		isNew, err := store.MarkProcessed(ctx, "order-1001", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "order-1001", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)

		processed, err := store.IsProcessed(ctx, "order-1001")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("lapsed claim can be taken again", func(t *testing.T) {
		store, clock := newClockedStore()

		_, err := store.MarkProcessed(ctx, "order-1002", time.Minute)
		require.NoError(t, err)
		clock.Advance(time.Minute)

		processed, err := store.IsProcessed(ctx, "order-1002")
		require.NoError(t, err)
		assert.False(t, processed)

		isNew, err := store.MarkProcessed(ctx, "order-1002", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("unknown key is not processed", func(t *testing.T) {
		store, _ := newClockedStore()
		processed, err := store.IsProcessed(ctx, "order-unknown")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestInMemoryIdempotencyStore_Prune(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "short-1", time.Second)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Second)
	_, _ = store.MarkProcessed(ctx, "long", time.Hour)
	require.Equal(t, 3, store.Len())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 2, store.Prune())
	assert.Equal(t, 1, store.Len())

	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_SweepsOnWrite(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "stale", time.Second)
	clock.Advance(time.Minute)

	for i := 1; i < pruneEvery; i++ {
		_, _ = store.MarkProcessed(ctx, fmt.Sprintf("order-%d", i), time.Hour)
	}

	// the write that hits pruneEvery drops the stale claim
	assert.Equal(t, pruneEvery-1, store.Len())
}

func TestInMemoryIdempotencyStore_ConcurrentDeliveries(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	const deliveries = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(context.Background(), "order-concurrent", time.Hour)
			if err == nil && isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount)
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store, _ := newClockedStore()
	_, _ = store.MarkProcessed(context.Background(), "order-1", time.Hour)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
	assert.Zero(t, store.Len())
}
