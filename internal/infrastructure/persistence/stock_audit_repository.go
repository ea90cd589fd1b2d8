package persistence

import (
	"context"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Audit listing bounds
const (
	DefaultAuditListLimit = 50
	MaxAuditListLimit     = 500
)

// GormStockAuditRepository implements bom.StockAuditRepository using GORM.
// It only inserts and reads; audit rows are never updated or deleted.
type GormStockAuditRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormStockAuditRepository creates a new GormStockAuditRepository
func NewGormStockAuditRepository(db *gorm.DB, retry RetryPolicy) *GormStockAuditRepository {
	return &GormStockAuditRepository{db: db, retry: retry}
}

// Append inserts an audit entry
func (r *GormStockAuditRepository) Append(ctx context.Context, entry *bom.StockAuditEntry) error {
	m, err := models.StockAuditLogModelFromDomain(entry)
	if err != nil {
		return err
	}
	return r.retry.Do(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Create(m).Error
	})
}

// ListByProduct returns the newest entries for a product first. A limit
// outside (0, MaxAuditListLimit] is clamped.
func (r *GormStockAuditRepository) ListByProduct(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]bom.StockAuditEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultAuditListLimit
	case limit > MaxAuditListLimit:
		limit = MaxAuditListLimit
	}

	var rows []models.StockAuditLogModel
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		rows = nil
		return r.db.WithContext(ctx).
			Scopes(tenantScope(tenantID)).
			Where("product_id = ?", productID).
			Order("created_at DESC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	entries := make([]bom.StockAuditEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

var _ bom.StockAuditRepository = (*GormStockAuditRepository)(nil)
