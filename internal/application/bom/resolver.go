package bom

import (
	"context"
	"fmt"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver finds the bill of materials that applies to a product or variant
type Resolver struct {
	boms   bom.BOMRepository
	logger *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(boms bom.BOMRepository, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{boms: boms, logger: logger}
}

// Resolve returns the variant-specific BOM if one exists, else the default.
// It returns nil without error when the product is not a composite, which
// includes a resolved BOM whose lines are all inactive.
func (r *Resolver) Resolve(ctx context.Context, tenantID, productID uuid.UUID, variantID int64) (*bom.BillOfMaterials, error) {
	candidates, err := r.boms.FindForResolution(ctx, tenantID, productID, variantID)
	if err != nil {
		return nil, fmt.Errorf("find BOMs for product %s: %w", productID, err)
	}

	resolved := bom.SelectBOM(candidates, variantID)
	if resolved == nil {
		r.logger.Debug("no usable BOM",
			zap.String("product_id", productID.String()),
			zap.Int64("variant_id", variantID),
			zap.Int("candidates", len(candidates)),
		)
		return nil, nil
	}
	return resolved, nil
}
