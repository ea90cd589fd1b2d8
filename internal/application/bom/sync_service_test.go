package bom

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("gift box end to end", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0), Trigger: bom.TriggerManual})

		require.True(t, result.Success, result.Error)
		assert.Equal(t, OutcomeSynced, result.Outcome)
		require.NotNil(t, result.PreviousStock)
		assert.Equal(t, int64(10), *result.PreviousStock)
		require.NotNil(t, result.NewStock)
		assert.Equal(t, int64(15), *result.NewStock)
		assert.True(t, result.LocalDBUpdated)

		require.Len(t, f.platform.productWrites, 1)
		write := f.platform.productWrites[0]
		assert.Equal(t, int64(100), write.ExternalID)
		assert.Equal(t, int64(15), write.Update.Quantity)
		assert.True(t, write.Update.ManageStock)
		assert.Equal(t, integration.StockStatusInStock, write.Update.Status)

		cached := f.store.cachedProductStock(box.ID)
		require.NotNil(t, cached)
		assert.Equal(t, int64(15), *cached)
	})

	t.Run("audit entry records the write", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0), Trigger: bom.TriggerOrderCompleted, OrderRef: "WC-1001"})
		require.True(t, result.Success)

		require.Equal(t, 1, f.store.auditCount())
		entry := f.store.audits[0]
		assert.Equal(t, bom.SystemActor, entry.Actor)
		assert.Equal(t, box.ID, entry.ProductID)
		require.NotNil(t, entry.PreviousStock)
		assert.Equal(t, int64(10), *entry.PreviousStock)
		assert.Equal(t, int64(15), entry.NewStock)
		assert.Equal(t, bom.ValidationPassed, entry.Validation)
		assert.Equal(t, bom.TriggerOrderCompleted, entry.Context.Trigger)
		assert.Equal(t, "WC-1001", entry.Context.OrderRef)
		assert.Len(t, entry.Context.Components, 2)
		require.NotNil(t, entry.Context.BottleneckItemID)
	})

	t.Run("second sync is a no-op", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		target := f.target(box, 0)

		first := f.service.Sync(ctx, SyncRequest{Target: target})
		require.Equal(t, OutcomeSynced, first.Outcome)

		second := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.True(t, second.Success)
		assert.Equal(t, OutcomeInSync, second.Outcome)
		assert.True(t, second.LocalDBUpdated)
		assert.Equal(t, 1, f.platform.writes())
		assert.Equal(t, 1, f.store.auditCount())
	})

	t.Run("no-op path reconciles the local cache", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.setProduct(box.ExternalID, qty(15))

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		assert.Equal(t, OutcomeInSync, result.Outcome)
		assert.True(t, result.LocalDBUpdated)

		cached := f.store.cachedProductStock(box.ID)
		require.NotNil(t, cached)
		assert.Equal(t, int64(15), *cached)
		assert.Equal(t, 0, f.platform.writes())
	})

	t.Run("no-op path keeps the status the platform reports", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.setProduct(box.ExternalID, qty(15))
		f.platform.setProductStatus(box.ExternalID, integration.StockStatusBackorder)

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		require.Equal(t, OutcomeInSync, result.Outcome)

		assert.Equal(t, integration.StockStatusBackorder, f.store.cachedProductStatus(box.ID))
		assert.Equal(t, 0, f.platform.writes())
	})

	t.Run("no-op path derives a missing status from the quantity", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.setProduct(box.ExternalID, qty(15))

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		require.Equal(t, OutcomeInSync, result.Outcome)

		assert.Equal(t, integration.StockStatusInStock, f.store.cachedProductStatus(box.ID))
	})

	t.Run("unknown platform stock forces a write", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.setProduct(box.ExternalID, nil)

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		assert.Equal(t, OutcomeSynced, result.Outcome)
		assert.Nil(t, result.PreviousStock)
		assert.Equal(t, 1, f.platform.writes())
	})

	t.Run("zero effective stock writes out of stock", func(t *testing.T) {
		f := newFixture()
		box, _, card := f.giftBox()
		f.platform.setProduct(card.ExternalID, qty(0))

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		require.Equal(t, OutcomeSynced, result.Outcome)
		require.Len(t, f.platform.productWrites, 1)
		assert.Equal(t, int64(0), f.platform.productWrites[0].Update.Quantity)
		assert.Equal(t, integration.StockStatusOutOfStock, f.platform.productWrites[0].Update.Status)
	})

	t.Run("no BOM reports failure", func(t *testing.T) {
		f := newFixture()
		plain := f.product(5, "Plain", nil)

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(plain, 0)})
		assert.False(t, result.Success)
		assert.Equal(t, OutcomeFailed, result.Outcome)
		assert.ErrorIs(t, result.Err(), bom.ErrNoUsableComponents)
		assert.Equal(t, "no BOM or no usable components", result.Error)
		assert.Equal(t, 0, f.platform.writes())
	})

	t.Run("guard refuses product-level write on variable parent", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.store.products[box.ID].HasVariants = true

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		assert.False(t, result.Success)
		assert.ErrorIs(t, result.Err(), bom.ErrVariableParentGuard)
		assert.Equal(t, 0, f.platform.writes())
		assert.Equal(t, 0, f.store.auditCount())
		assert.True(t, f.store.boms[0].Items[0].IsActive)
	})

	t.Run("variant-scoped write on variable parent is allowed", func(t *testing.T) {
		f := newFixture()
		tee := f.product(1, "Tee Set", nil)
		tee.HasVariants = true
		small := f.variant(tee, 2, qty(1))
		f.platform.setVariant(1, 2, qty(1))
		cotton := f.internal("Cotton", "12")
		f.bom(tee, 2, line{component: bom.InternalItemComponent{Item: cotton}, quantity: "4"})

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(tee, 2)})
		require.True(t, result.Success, result.Error)
		require.Len(t, f.platform.variantWrites, 1)
		assert.Equal(t, int64(2), f.platform.variantWrites[0].VariantID)
		assert.Equal(t, int64(3), f.platform.variantWrites[0].Update.Quantity)
		assert.Empty(t, f.platform.productWrites)

		require.NotNil(t, f.store.variants[small.ID].Stock.Quantity)
		assert.Equal(t, int64(3), *f.store.variants[small.ID].Stock.Quantity)
	})

	t.Run("vanished composite deactivates its BOM", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.writeErr = fmt.Errorf("%w: HTTP 404", integration.ErrPlatformNotFound)
		target := f.target(box, 0)

		result := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.False(t, result.Success)
		assert.Equal(t, 2, result.DeactivatedItems)
		assert.Equal(t, 0, f.store.auditCount())
		for _, item := range f.store.boms[0].Items {
			assert.False(t, item.IsActive)
			assert.Equal(t, bom.ReasonCompositeDeleted, item.DeactivatedReason)
		}

		next := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.ErrorIs(t, next.Err(), bom.ErrNoUsableComponents)
	})

	t.Run("other write failure leaves BOM active", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.platform.writeErr = fmt.Errorf("%w: HTTP 500", integration.ErrPlatformRequestFailed)

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "HTTP 500")
		assert.Equal(t, 0, result.DeactivatedItems)
		assert.Equal(t, 0, f.store.auditCount())
		assert.True(t, f.store.boms[0].Items[0].IsActive)
	})

	t.Run("audit failure keeps the sync successful", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		f.store.auditErr = errors.New("connection refused")

		result := f.service.Sync(ctx, SyncRequest{Target: f.target(box, 0)})
		assert.True(t, result.Success)
		assert.Equal(t, OutcomeSynced, result.Outcome)
		assert.Equal(t, "connection refused", result.AuditError)
	})

	t.Run("lock is released after sync", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		target := f.target(box, 0)

		f.service.Sync(ctx, SyncRequest{Target: target})
		assert.False(t, f.locker.isHeld(target.LockKey()))
	})
}

func TestSyncService_Locking(t *testing.T) {
	ctx := context.Background()

	t.Run("held lock skips with fail-fast wait", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		target := f.target(box, 0)
		f.service.SetLockTiming(time.Minute, 0)

		release, ok, err := f.locker.TryAcquire(ctx, target.LockKey(), time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
		defer release()

		result := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.Equal(t, OutcomeLocked, result.Outcome)
		assert.ErrorIs(t, result.Err(), bom.ErrSyncInProgress)
		assert.Equal(t, 0, f.platform.writes())
	})

	t.Run("held lock times out after the wait", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		target := f.target(box, 0)
		f.service.SetLockTiming(time.Minute, 30*time.Millisecond)

		release, _, err := f.locker.TryAcquire(ctx, target.LockKey(), time.Minute)
		require.NoError(t, err)
		defer release()

		result := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.Equal(t, OutcomeLocked, result.Outcome)
	})

	t.Run("waits for a concurrent sync to finish", func(t *testing.T) {
		f := newFixture()
		box, _, _ := f.giftBox()
		target := f.target(box, 0)
		f.service.SetLockTiming(time.Minute, time.Second)

		release, _, err := f.locker.TryAcquire(ctx, target.LockKey(), time.Minute)
		require.NoError(t, err)
		go func() {
			time.Sleep(20 * time.Millisecond)
			release()
		}()

		result := f.service.Sync(ctx, SyncRequest{Target: target})
		assert.Equal(t, OutcomeSynced, result.Outcome)
	})
}
