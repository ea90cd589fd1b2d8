package persistence

import (
	"testing"

	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/erp/bomsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProductRepository_Find(t *testing.T) {
	db := newTestDB(t)
	c := newCatalog(t, db)

	p := c.product(42, qty(8))
	v := c.variant(p, 43, nil)

	t.Run("by id", func(t *testing.T) {
		found, err := c.products.FindByID(c.ctx, c.tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(42), found.ExternalID)
		assert.Equal(t, qty(8), found.Stock.Quantity)
		assert.True(t, found.ManageStock)
	})

	t.Run("by external id", func(t *testing.T) {
		found, err := c.products.FindByExternalID(c.ctx, c.tenantID, 42)
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
	})

	t.Run("variant by external id", func(t *testing.T) {
		found, err := c.products.FindVariantByExternalID(c.ctx, c.tenantID, p.ID, 43)
		require.NoError(t, err)
		assert.Equal(t, v.ID, found.ID)
		assert.Nil(t, found.Stock.Quantity)
	})

	t.Run("missing rows map to ErrNotFound", func(t *testing.T) {
		_, err := c.products.FindByID(c.ctx, c.tenantID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = c.products.FindByExternalID(c.ctx, uuid.New(), 42)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = c.products.FindVariantByExternalID(c.ctx, c.tenantID, p.ID, 999)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("soft-deleted products are not found", func(t *testing.T) {
		gone := c.product(77, nil)
		require.NoError(t, db.Delete(&models.ProductModel{}, "id = ?", gone.ID).Error)

		_, err := c.products.FindByID(c.ctx, c.tenantID, gone.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormProductRepository_UpdateStockCache(t *testing.T) {
	db := newTestDB(t)
	c := newCatalog(t, db)

	p := c.product(42, qty(8))
	v := c.variant(p, 43, qty(1))

	t.Run("product quantity and status", func(t *testing.T) {
		require.NoError(t, c.products.UpdateProductStockCache(c.ctx, c.tenantID, p.ID, qty(3), integration.StockStatusInStock))

		found, err := c.products.FindByID(c.ctx, c.tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, qty(3), found.Stock.Quantity)
		assert.Equal(t, integration.StockStatusInStock, found.Stock.Status)
	})

	t.Run("unknown quantity clears the cache", func(t *testing.T) {
		require.NoError(t, c.products.UpdateProductStockCache(c.ctx, c.tenantID, p.ID, nil, integration.StockStatusOutOfStock))

		found, err := c.products.FindByID(c.ctx, c.tenantID, p.ID)
		require.NoError(t, err)
		assert.Nil(t, found.Stock.Quantity)
	})

	t.Run("variant", func(t *testing.T) {
		require.NoError(t, c.products.UpdateVariantStockCache(c.ctx, c.tenantID, v.ID, qty(0), integration.StockStatusOutOfStock))

		found, err := c.products.FindVariantByExternalID(c.ctx, c.tenantID, p.ID, 43)
		require.NoError(t, err)
		assert.Equal(t, qty(0), found.Stock.Quantity)
		assert.Equal(t, integration.StockStatusOutOfStock, found.Stock.Status)
	})

	t.Run("other tenant cannot update", func(t *testing.T) {
		err := c.products.UpdateProductStockCache(c.ctx, uuid.New(), p.ID, qty(99), integration.StockStatusInStock)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
