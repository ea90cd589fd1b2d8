package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormStockAuditRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormStockAuditRepository(db, NoRetry())
	ctx := context.Background()

	target := bom.SyncTarget{TenantID: uuid.New(), ProductID: uuid.New(), VariantID: 4}
	bottleneck := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := int64(0); i < 3; i++ {
		entry := bom.NewStockAuditEntry(target, qty(i), i+1, bom.AuditContext{
			Trigger:  bom.TriggerOrderCompleted,
			OrderRef: "order-1001",
			Components: []bom.ComponentLine{{
				ItemID:    bottleneck,
				Kind:      bom.ComponentKindExternalProduct,
				Label:     "product:100",
				Stock:     decimal.NewFromInt(10),
				Required:  decimal.RequireFromString("2.2"),
				Buildable: 4,
				Origin:    bom.StockFromLive,
			}},
			BottleneckItemID: &bottleneck,
		})
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Append(ctx, entry))
	}

	t.Run("lists newest first with context", func(t *testing.T) {
		entries, err := repo.ListByProduct(ctx, target.TenantID, target.ProductID, 10)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		latest := entries[0]
		assert.Equal(t, int64(3), latest.NewStock)
		assert.Equal(t, qty(2), latest.PreviousStock)
		assert.Equal(t, bom.SystemActor, latest.Actor)
		assert.Equal(t, bom.ValidationPassed, latest.Validation)
		assert.Equal(t, int64(4), latest.VariantID)

		assert.Equal(t, bom.TriggerOrderCompleted, latest.Context.Trigger)
		assert.Equal(t, "order-1001", latest.Context.OrderRef)
		assert.Equal(t, int64(4), latest.Context.VariantID)
		require.Len(t, latest.Context.Components, 1)
		assert.True(t, decimal.RequireFromString("2.2").Equal(latest.Context.Components[0].Required))
		assert.Equal(t, &bottleneck, latest.Context.BottleneckItemID)
	})

	t.Run("honours the limit", func(t *testing.T) {
		entries, err := repo.ListByProduct(ctx, target.TenantID, target.ProductID, 2)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		entries, err := repo.ListByProduct(ctx, uuid.New(), target.ProductID, 0)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
