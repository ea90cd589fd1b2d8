package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/erp/bomsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBOMRepository implements bom.BOMRepository using GORM
type GormBOMRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

// NewGormBOMRepository creates a new GormBOMRepository
func NewGormBOMRepository(db *gorm.DB, retry RetryPolicy) *GormBOMRepository {
	return &GormBOMRepository{db: db, retry: retry}
}

// FindForResolution loads the BOMs keyed by variantID or the default, with
// their active lines in sort order. Lines whose component row is soft-deleted
// are dropped on conversion.
func (r *GormBOMRepository) FindForResolution(ctx context.Context, tenantID, productID uuid.UUID, variantID int64) ([]bom.BillOfMaterials, error) {
	var rows []models.BOMModel
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		rows = nil
		return r.db.WithContext(ctx).
			Scopes(tenantScope(tenantID)).
			Where("product_id = ? AND variant_id IN ?", productID, []int64{variantID, bom.DefaultVariantID}).
			Preload("Items", func(db *gorm.DB) *gorm.DB {
				return activeItems(db).Order("sort_order ASC")
			}).
			Preload("Items.ComponentProduct").
			Preload("Items.ComponentVariant").
			Preload("Items.InternalItem").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	boms := make([]bom.BillOfMaterials, 0, len(rows))
	for i := range rows {
		boms = append(boms, *rows[i].ToDomain())
	}
	return boms, nil
}

// syncTargetRow is the scan target for target listings
type syncTargetRow struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	VariantID int64
}

func (row syncTargetRow) toDomain() bom.SyncTarget {
	return bom.SyncTarget{TenantID: row.TenantID, ProductID: row.ProductID, VariantID: row.VariantID}
}

// targetsQuery selects the distinct BOM keys with at least one active line
// whose composite product still exists.
func (r *GormBOMRepository) targetsQuery(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("boms").
		Select("DISTINCT boms.tenant_id, boms.product_id, boms.variant_id").
		Joins("JOIN bom_items ON bom_items.bom_id = boms.id AND bom_items.is_active = ?", true).
		Joins("JOIN products ON products.id = boms.product_id AND products.deleted_at IS NULL").
		Where("boms.tenant_id = ?", tenantID)
}

// ListSyncTargets returns every composite (product, variant) of the tenant
func (r *GormBOMRepository) ListSyncTargets(ctx context.Context, tenantID uuid.UUID) ([]bom.SyncTarget, error) {
	var rows []syncTargetRow
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		rows = nil
		return r.targetsQuery(ctx, tenantID).
			Order("boms.product_id, boms.variant_id").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

// FindTargetsByComponent returns the composites consuming the component. A
// lookup narrowed to a variant matches lines on that variant and
// product-level lines on its parent, never lines on sibling variants.
func (r *GormBOMRepository) FindTargetsByComponent(ctx context.Context, tenantID uuid.UUID, lookup bom.ComponentLookup) ([]bom.SyncTarget, error) {
	var rows []syncTargetRow
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		rows = nil
		q := r.targetsQuery(ctx, tenantID).
			Where("bom_items.component_product_id = ?", lookup.ProductID)
		if lookup.VariantID != nil {
			q = q.Where("(bom_items.component_variant_id IS NULL OR bom_items.component_variant_id = ?)", *lookup.VariantID)
		}
		return q.Order("boms.product_id, boms.variant_id").Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return toTargets(rows), nil
}

func toTargets(rows []syncTargetRow) []bom.SyncTarget {
	targets := make([]bom.SyncTarget, len(rows))
	for i, row := range rows {
		targets[i] = row.toDomain()
	}
	return targets
}

func deactivation(reason bom.DeactivationReason) map[string]any {
	now := time.Now()
	return map[string]any{
		"is_active":          false,
		"deactivated_reason": string(reason),
		"deactivated_at":     now,
		"updated_at":         now,
	}
}

// DeactivateItem tombstones one line. An already inactive line is left as is.
func (r *GormBOMRepository) DeactivateItem(ctx context.Context, itemID uuid.UUID, reason bom.DeactivationReason) error {
	return r.retry.Do(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).
			Model(&models.BOMItemModel{}).
			Scopes(activeItems).
			Where("id = ?", itemID).
			Updates(deactivation(reason)).Error
	})
}

// DeactivateItemsForTarget tombstones the active lines of the BOM keyed by
// exactly (product, variant). A product-level target leaves the variant BOMs
// of the same product alone.
func (r *GormBOMRepository) DeactivateItemsForTarget(ctx context.Context, target bom.SyncTarget, reason bom.DeactivationReason) (int64, error) {
	var affected int64
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		boms := r.db.WithContext(ctx).
			Model(&models.BOMModel{}).
			Select("id").
			Scopes(tenantScope(target.TenantID)).
			Where("product_id = ? AND variant_id = ?", target.ProductID, target.VariantID)

		result := r.db.WithContext(ctx).
			Model(&models.BOMItemModel{}).
			Scopes(activeItems).
			Where("bom_id IN (?)", boms).
			Updates(deactivation(reason))
		affected = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// itemUpsertColumns are rewritten when a saved line already exists
var itemUpsertColumns = []string{
	"component_type", "component_product_id", "component_variant_id", "internal_item_id",
	"quantity", "waste_factor", "is_active", "deactivated_reason", "deactivated_at",
	"sort_order", "updated_at",
}

// Save creates or replaces a BOM and its lines. Lines no longer on the BOM are
// removed. Another BOM already keyed by the same (product, variant) is a conflict.
func (r *GormBOMRepository) Save(ctx context.Context, b *bom.BillOfMaterials) error {
	if b == nil {
		return shared.ErrInvalidInput
	}
	m := models.BOMModelFromDomain(b)

	return r.retry.Do(ctx, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.BOMModel
			err := tx.Scopes(tenantScope(b.TenantID)).
				Where("product_id = ? AND variant_id = ?", b.ProductID, b.VariantID).
				First(&existing).Error
			switch {
			case err == nil && existing.ID != b.ID:
				return fmt.Errorf("bom for %s: %w", b.Target(), shared.ErrConflict)
			case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
				return err
			}

			keep := make([]uuid.UUID, 0, len(m.Items))
			for i := range m.Items {
				keep = append(keep, m.Items[i].ID)
			}
			stale := tx.Where("bom_id = ?", m.ID)
			if len(keep) > 0 {
				stale = stale.Where("id NOT IN ?", keep)
			}
			if err := stale.Delete(&models.BOMItemModel{}).Error; err != nil {
				return err
			}

			if len(m.Items) == 0 {
				return nil
			}
			return tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns(itemUpsertColumns),
				}).
				Create(&m.Items).Error
		})
	})
}

// ListTenantIDs returns the tenants that own at least one BOM
func (r *GormBOMRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		ids = nil
		return r.db.WithContext(ctx).
			Model(&models.BOMModel{}).
			Distinct().
			Order("tenant_id").
			Pluck("tenant_id", &ids).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var _ bom.BOMRepository = (*GormBOMRepository)(nil)
