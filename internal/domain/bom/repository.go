package bom

import (
	"context"
	"time"

	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/google/uuid"
)

// ComponentLookup addresses a component product, optionally narrowed to one
// of its local variants.
type ComponentLookup struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
}

// BOMRepository defines the interface for bill-of-materials persistence
type BOMRepository interface {
	// FindForResolution returns the BOMs of productID scoped to variantID or to
	// the default, loaded with active items whose components still exist.
	FindForResolution(ctx context.Context, tenantID, productID uuid.UUID, variantID int64) ([]BillOfMaterials, error)

	// ListSyncTargets returns every (product, variant) with at least one active item
	ListSyncTargets(ctx context.Context, tenantID uuid.UUID) ([]SyncTarget, error)

	// FindTargetsByComponent returns the composites with an active item
	// consuming the component
	FindTargetsByComponent(ctx context.Context, tenantID uuid.UUID, lookup ComponentLookup) ([]SyncTarget, error)

	// DeactivateItem tombstones a single item
	DeactivateItem(ctx context.Context, itemID uuid.UUID, reason DeactivationReason) error

	// DeactivateItemsForTarget tombstones every active item of the BOM keyed by
	// target and returns how many changed
	DeactivateItemsForTarget(ctx context.Context, target SyncTarget, reason DeactivationReason) (int64, error)

	// Save creates or replaces a BOM with its items
	Save(ctx context.Context, bom *BillOfMaterials) error

	// ListTenantIDs returns the tenants owning at least one BOM
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// ProductRepository defines persistence for the local product, variant and
// internal item mirrors, including the stock cache.
type ProductRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID int64) (*Product, error)
	FindVariantByExternalID(ctx context.Context, tenantID, productID uuid.UUID, externalID int64) (*ProductVariant, error)

	Save(ctx context.Context, product *Product) error
	SaveVariant(ctx context.Context, variant *ProductVariant) error
	SaveInternalItem(ctx context.Context, item *InternalItem) error

	// UpdateProductStockCache writes an observed platform stock on a product
	UpdateProductStockCache(ctx context.Context, tenantID, productID uuid.UUID, quantity *int64, status integration.StockStatus) error

	// UpdateVariantStockCache writes an observed platform stock on a variant
	UpdateVariantStockCache(ctx context.Context, tenantID, variantID uuid.UUID, quantity *int64, status integration.StockStatus) error
}

// StockAuditRepository is append-only
type StockAuditRepository interface {
	Append(ctx context.Context, entry *StockAuditEntry) error
	ListByProduct(ctx context.Context, tenantID, productID uuid.UUID, limit int) ([]StockAuditEntry, error)
}

// SyncLocker serialises syncs of the same target across goroutines and processes
type SyncLocker interface {
	// Acquire blocks until the lock is held or ctx is done
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)

	// TryAcquire returns acquired=false without blocking when the lock is held
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
