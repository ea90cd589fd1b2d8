package integration

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// StockSource Errors
// ---------------------------------------------------------------------------

var (
	ErrPlatformNotConfigured   = errors.New("integration: platform not configured")
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")

	// ErrPlatformNotFound means the target no longer exists upstream. It is the
	// only class that triggers staleness deactivation.
	ErrPlatformNotFound = errors.New("integration: platform resource not found")
)

// IsNotFound reports whether err belongs to the not-found class
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlatformNotFound)
}

// ---------------------------------------------------------------------------
// Stock status
// ---------------------------------------------------------------------------

// StockStatus is the customer-facing availability flag on the platform
type StockStatus string

const (
	StockStatusInStock    StockStatus = "instock"
	StockStatusOutOfStock StockStatus = "outofstock"
	StockStatusBackorder  StockStatus = "onbackorder"
)

// IsValid checks if the stock status is a known value
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusInStock, StockStatusOutOfStock, StockStatusBackorder:
		return true
	}
	return false
}

// StockStatusFor derives the status written alongside a quantity
func StockStatusFor(quantity int64) StockStatus {
	if quantity > 0 {
		return StockStatusInStock
	}
	return StockStatusOutOfStock
}

// ---------------------------------------------------------------------------
// Platform records
// ---------------------------------------------------------------------------

// PlatformProduct is the stock view of a product on the platform
type PlatformProduct struct {
	ExternalID  int64
	Name        string
	SKU         string
	Type        string
	ManageStock bool
	// StockQuantity is nil when the platform does not track a quantity
	StockQuantity *int64
	StockStatus   StockStatus
	VariationIDs  []int64
}

// HasVariants reports whether the platform treats the product as a variable parent
func (p *PlatformProduct) HasVariants() bool {
	return p.Type == "variable" || len(p.VariationIDs) > 0
}

// PlatformVariant is the stock view of one variation of a parent product
type PlatformVariant struct {
	ExternalID       int64
	ParentExternalID int64
	SKU              string
	ManageStock      bool
	StockQuantity    *int64
	StockStatus      StockStatus
}

// FindVariant returns the variant with the given external ID
func FindVariant(variants []PlatformVariant, externalID int64) (PlatformVariant, bool) {
	for _, v := range variants {
		if v.ExternalID == externalID {
			return v, true
		}
	}
	return PlatformVariant{}, false
}

// StockUpdate is the payload of a stock write
type StockUpdate struct {
	Quantity    int64
	ManageStock bool
	Status      StockStatus
}

// NewManagedStockUpdate builds the update issued for a computed composite stock
func NewManagedStockUpdate(quantity int64) StockUpdate {
	return StockUpdate{
		Quantity:    quantity,
		ManageStock: true,
		Status:      StockStatusFor(quantity),
	}
}

// ---------------------------------------------------------------------------
// StockSource port
// ---------------------------------------------------------------------------

// StockSource is the external commerce platform as seen by the BOM engine.
// Implementations must return an error wrapping ErrPlatformNotFound when the
// addressed product or variant does not exist. Calls are not retried by
// callers.
type StockSource interface {
	// GetProduct fetches the current stock view of a product
	GetProduct(ctx context.Context, tenantID uuid.UUID, externalID int64) (*PlatformProduct, error)

	// ListVariants fetches every variation of a parent product
	ListVariants(ctx context.Context, tenantID uuid.UUID, parentExternalID int64) ([]PlatformVariant, error)

	// UpdateProductStock writes stock on a product
	UpdateProductStock(ctx context.Context, tenantID uuid.UUID, externalID int64, update StockUpdate) error

	// UpdateVariantStock writes stock on one variation of a parent product
	UpdateVariantStock(ctx context.Context, tenantID uuid.UUID, parentExternalID, variantExternalID int64, update StockUpdate) error
}
