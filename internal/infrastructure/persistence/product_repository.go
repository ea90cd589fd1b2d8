package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/erp/bomsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductRepository implements bom.ProductRepository using GORM
type GormProductRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB, retry RetryPolicy) *GormProductRepository {
	return &GormProductRepository{db: db, retry: retry}
}

// first loads one row into dest, mapping a missing row to shared.ErrNotFound
func (r *GormProductRepository) first(ctx context.Context, dest any, query *gorm.DB) error {
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		return query.WithContext(ctx).First(dest).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// FindByID finds a product by its local id within a tenant
func (r *GormProductRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*bom.Product, error) {
	var m models.ProductModel
	if err := r.first(ctx, &m, r.db.Scopes(tenantScope(tenantID)).Where("id = ?", id)); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindByExternalID finds a product by its platform id within a tenant
func (r *GormProductRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*bom.Product, error) {
	var m models.ProductModel
	if err := r.first(ctx, &m, r.db.Scopes(tenantScope(tenantID)).Where("external_id = ?", externalID)); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindVariantByExternalID finds a variant of a local product by its platform id
func (r *GormProductRepository) FindVariantByExternalID(ctx context.Context, tenantID, productID uuid.UUID, externalID int64) (*bom.ProductVariant, error) {
	var m models.ProductVariantModel
	query := r.db.Scopes(tenantScope(tenantID)).
		Where("product_id = ? AND external_id = ?", productID, externalID)
	if err := r.first(ctx, &m, query); err != nil {
		return nil, err
	}
	return m.ToDomain(), nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *bom.Product) error {
	return r.save(ctx, models.ProductModelFromDomain(product))
}

// SaveVariant creates or updates a variant
func (r *GormProductRepository) SaveVariant(ctx context.Context, variant *bom.ProductVariant) error {
	return r.save(ctx, models.ProductVariantModelFromDomain(variant))
}

// SaveInternalItem creates or updates an internal item
func (r *GormProductRepository) SaveInternalItem(ctx context.Context, item *bom.InternalItem) error {
	return r.save(ctx, models.InternalItemModelFromDomain(item))
}

func (r *GormProductRepository) save(ctx context.Context, model any) error {
	return r.retry.Do(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Save(model).Error
	})
}

// UpdateProductStockCache writes an observed platform stock on a product
func (r *GormProductRepository) UpdateProductStockCache(ctx context.Context, tenantID, productID uuid.UUID, quantity *int64, status integration.StockStatus) error {
	return r.updateStockCache(ctx, &models.ProductModel{}, tenantID, productID, quantity, status)
}

// UpdateVariantStockCache writes an observed platform stock on a variant
func (r *GormProductRepository) UpdateVariantStockCache(ctx context.Context, tenantID, variantID uuid.UUID, quantity *int64, status integration.StockStatus) error {
	return r.updateStockCache(ctx, &models.ProductVariantModel{}, tenantID, variantID, quantity, status)
}

func (r *GormProductRepository) updateStockCache(ctx context.Context, model any, tenantID, id uuid.UUID, quantity *int64, status integration.StockStatus) error {
	var affected int64
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		result := r.db.WithContext(ctx).
			Model(model).
			Scopes(tenantScope(tenantID)).
			Where("id = ?", id).
			Updates(map[string]any{
				"stock_quantity": quantity,
				"stock_status":   string(status),
				"updated_at":     time.Now(),
			})
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ bom.ProductRepository = (*GormProductRepository)(nil)
