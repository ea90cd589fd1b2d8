package bom

import (
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CachedStock is the last platform stock observed for a product or variant
type CachedStock struct {
	// Quantity is nil until a managed quantity has been observed
	Quantity *int64
	Status   integration.StockStatus
}

// Known returns the cached quantity and whether one exists
func (c *CachedStock) Known() (int64, bool) {
	if c.Quantity == nil {
		return 0, false
	}
	return *c.Quantity, true
}

// Differs reports whether quantity disagrees with the cache
func (c *CachedStock) Differs(quantity *int64) bool {
	if c.Quantity == nil || quantity == nil {
		return c.Quantity != quantity
	}
	return *c.Quantity != *quantity
}

// Observe records a platform quantity and reports whether the cache changed
func (c *CachedStock) Observe(quantity *int64, status integration.StockStatus) bool {
	changed := c.Differs(quantity) || c.Status != status
	if quantity != nil {
		q := *quantity
		c.Quantity = &q
	} else {
		c.Quantity = nil
	}
	c.Status = status
	return changed
}

// Product is the local mirror of a product on the commerce platform. Composite
// products and externally stocked components are both Products.
type Product struct {
	shared.TenantEntity
	ExternalID  int64
	Name        string
	SKU         string
	HasVariants bool
	ManageStock bool
	Stock       CachedStock
}

// NewProduct creates a product mirror for an external platform product
func NewProduct(tenantID uuid.UUID, externalID int64, name string) (*Product, error) {
	if externalID <= 0 {
		return nil, ErrInvalidExternalID
	}
	return &Product{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ExternalID:   externalID,
		Name:         name,
	}, nil
}

// ProductVariant is the local mirror of one variation of a platform product
type ProductVariant struct {
	shared.TenantEntity
	ProductID  uuid.UUID
	ExternalID int64
	SKU        string
	Name       string
	Stock      CachedStock
}

// NewProductVariant creates a variant mirror under a local product
func NewProductVariant(tenantID, productID uuid.UUID, externalID int64) (*ProductVariant, error) {
	if productID == uuid.Nil {
		return nil, ErrInvalidProduct
	}
	if externalID <= 0 {
		return nil, ErrInvalidExternalID
	}
	return &ProductVariant{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ProductID:    productID,
		ExternalID:   externalID,
	}, nil
}

// InternalItem is stock tracked only inside this system (packaging,
// consumables) with no platform counterpart.
type InternalItem struct {
	shared.TenantEntity
	Name          string
	SKU           string
	StockQuantity decimal.Decimal
}

// NewInternalItem creates an internal-only item
func NewInternalItem(tenantID uuid.UUID, name, sku string, stock decimal.Decimal) *InternalItem {
	return &InternalItem{
		TenantEntity:  shared.NewTenantEntity(tenantID),
		Name:          name,
		SKU:           sku,
		StockQuantity: stock,
	}
}
