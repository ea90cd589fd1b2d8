package bom

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultVariantID marks a product-level BOM
const DefaultVariantID int64 = 0

// DeactivationReason records why a BOM item stopped counting
type DeactivationReason string

const (
	ReasonComponentDeleted DeactivationReason = "component_deleted"
	ReasonVariantDeleted   DeactivationReason = "variant_deleted"
	ReasonCompositeDeleted DeactivationReason = "composite_deleted"
)

// SyncTarget identifies one composite stock figure: a product, or one of its
// variants by external variant ID.
type SyncTarget struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	VariantID int64
}

// IsVariantScoped reports whether the target addresses a single variant
func (t SyncTarget) IsVariantScoped() bool {
	return t.VariantID != DefaultVariantID
}

// LockKey is the key under which syncs of this target are serialised
func (t SyncTarget) LockKey() string {
	return fmt.Sprintf("bom-sync:%s:%s:%d", t.TenantID, t.ProductID, t.VariantID)
}

func (t SyncTarget) String() string {
	return fmt.Sprintf("%s/%d", t.ProductID, t.VariantID)
}

// BOMItem is one line of a bill of materials
type BOMItem struct {
	ID                uuid.UUID
	BOMID             uuid.UUID
	Component         Component
	Quantity          decimal.Decimal
	WasteFactor       decimal.Decimal
	IsActive          bool
	DeactivatedReason DeactivationReason
	DeactivatedAt     *time.Time
	SortOrder         int
}

// NewBOMItem creates an active BOM line. Quantity and waste are not validated
// here; a non-positive requirement is skipped at calculation time.
func NewBOMItem(component Component, quantity, wasteFactor decimal.Decimal) (*BOMItem, error) {
	if err := validateComponent(component); err != nil {
		return nil, err
	}
	return &BOMItem{
		ID:          uuid.New(),
		Component:   component,
		Quantity:    quantity,
		WasteFactor: wasteFactor,
		IsActive:    true,
	}, nil
}

// RequiredQuantity is the amount consumed per composite unit, waste included
func (i *BOMItem) RequiredQuantity() decimal.Decimal {
	return RequiredQuantity(i.Quantity, i.WasteFactor)
}

// Deactivate tombstones the line. It returns false if it was already inactive.
func (i *BOMItem) Deactivate(reason DeactivationReason, at time.Time) bool {
	if !i.IsActive {
		return false
	}
	i.IsActive = false
	i.DeactivatedReason = reason
	i.DeactivatedAt = &at
	return true
}

// BillOfMaterials binds a composite product (optionally one variant) to its
// component lines.
type BillOfMaterials struct {
	shared.TenantEntity
	ProductID uuid.UUID
	VariantID int64
	Name      string
	Items     []BOMItem
}

// NewBillOfMaterials creates an empty BOM for a product or variant
func NewBillOfMaterials(tenantID, productID uuid.UUID, variantID int64) (*BillOfMaterials, error) {
	if productID == uuid.Nil {
		return nil, ErrInvalidProduct
	}
	if variantID < 0 {
		return nil, ErrInvalidVariant
	}
	return &BillOfMaterials{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ProductID:    productID,
		VariantID:    variantID,
		Items:        make([]BOMItem, 0),
	}, nil
}

// AddItem appends a line, assigning its BOM and position
func (b *BillOfMaterials) AddItem(item *BOMItem) {
	item.BOMID = b.ID
	item.SortOrder = len(b.Items)
	b.Items = append(b.Items, *item)
	b.Touch()
}

// Target returns the sync target this BOM computes stock for
func (b *BillOfMaterials) Target() SyncTarget {
	return SyncTarget{TenantID: b.TenantID, ProductID: b.ProductID, VariantID: b.VariantID}
}

// IsDefault reports whether this is the product-level BOM
func (b *BillOfMaterials) IsDefault() bool {
	return b.VariantID == DefaultVariantID
}

// ActiveItems returns the active lines in sort order
func (b *BillOfMaterials) ActiveItems() []BOMItem {
	active := make([]BOMItem, 0, len(b.Items))
	for _, item := range b.Items {
		if item.IsActive {
			active = append(active, item)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	return active
}

// SelectBOM picks the BOM applying to variantID: the variant-specific one if
// present, otherwise the default. A BOM without active lines counts as absent.
func SelectBOM(candidates []BillOfMaterials, variantID int64) *BillOfMaterials {
	var fallback *BillOfMaterials
	for i := range candidates {
		b := &candidates[i]
		switch b.VariantID {
		case variantID:
			if len(b.ActiveItems()) > 0 {
				return b
			}
			return nil
		case DefaultVariantID:
			fallback = b
		}
	}
	if fallback == nil || len(fallback.ActiveItems()) == 0 {
		return nil
	}
	return fallback
}
