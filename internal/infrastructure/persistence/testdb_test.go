package persistence

import (
	"context"
	"testing"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens an in-memory sqlite database with the schema migrated.
// A single connection keeps every query on the same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

// catalog seeds products, variants and internal items through the repository
type catalog struct {
	t        *testing.T
	ctx      context.Context
	tenantID uuid.UUID
	products *GormProductRepository
	boms     *GormBOMRepository
}

func newCatalog(t *testing.T, db *gorm.DB) *catalog {
	return &catalog{
		t:        t,
		ctx:      context.Background(),
		tenantID: uuid.New(),
		products: NewGormProductRepository(db, NoRetry()),
		boms:     NewGormBOMRepository(db, NoRetry()),
	}
}

func (c *catalog) product(externalID int64, stock *int64) *bom.Product {
	p, err := bom.NewProduct(c.tenantID, externalID, "product")
	require.NoError(c.t, err)
	p.ManageStock = true
	p.Stock.Quantity = stock
	require.NoError(c.t, c.products.Save(c.ctx, p))
	return p
}

func (c *catalog) variant(parent *bom.Product, externalID int64, stock *int64) *bom.ProductVariant {
	v, err := bom.NewProductVariant(c.tenantID, parent.ID, externalID)
	require.NoError(c.t, err)
	v.Stock.Quantity = stock
	require.NoError(c.t, c.products.SaveVariant(c.ctx, v))
	return v
}

func (c *catalog) internal(sku string, stock string) *bom.InternalItem {
	item := bom.NewInternalItem(c.tenantID, "packaging", sku, decimal.RequireFromString(stock))
	require.NoError(c.t, c.products.SaveInternalItem(c.ctx, item))
	return item
}

func (c *catalog) bom(composite *bom.Product, variantID int64, components ...bom.Component) *bom.BillOfMaterials {
	b, err := bom.NewBillOfMaterials(c.tenantID, composite.ID, variantID)
	require.NoError(c.t, err)
	for _, comp := range components {
		item, err := bom.NewBOMItem(comp, decimal.NewFromInt(2), decimal.RequireFromString("0.1"))
		require.NoError(c.t, err)
		b.AddItem(item)
	}
	require.NoError(c.t, c.boms.Save(c.ctx, b))
	return b
}

func qty(n int64) *int64 {
	return &n
}
