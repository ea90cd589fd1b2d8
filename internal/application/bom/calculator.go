package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockCalculator computes the effective stock of composite products
type StockCalculator struct {
	resolver *Resolver
	boms     bom.BOMRepository
	products bom.ProductRepository
	source   integration.StockSource
	recorder SyncRecorder
	logger   *zap.Logger
}

// NewStockCalculator creates a new StockCalculator
func NewStockCalculator(
	resolver *Resolver,
	boms bom.BOMRepository,
	products bom.ProductRepository,
	source integration.StockSource,
	logger *zap.Logger,
) *StockCalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockCalculator{
		resolver: resolver,
		boms:     boms,
		products: products,
		source:   source,
		recorder: noopRecorder{},
		logger:   logger,
	}
}

// SetRecorder sets the telemetry recorder
func (c *StockCalculator) SetRecorder(recorder SyncRecorder) {
	if recorder != nil {
		c.recorder = recorder
	}
}

// componentReading is the stock resolved for one BOM line
type componentReading struct {
	stock  decimal.Decimal
	origin bom.StockOrigin
	stale  bom.DeactivationReason
}

// Calculate runs the full calculation against live platform data. Component
// fetch failures degrade to cached values, observed values are written back
// to the cache, and lines whose component vanished upstream are deactivated.
// A nil result means the target is not a composite.
func (c *StockCalculator) Calculate(ctx context.Context, target bom.SyncTarget) (*EffectiveStockResult, error) {
	resolved, err := c.resolver.Resolve(ctx, target.TenantID, target.ProductID, target.VariantID)
	if err != nil || resolved == nil {
		return nil, err
	}

	composite, err := c.products.FindByID(ctx, target.TenantID, target.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load composite %s: %w", target.ProductID, err)
	}

	cache := NewVariantListCache(c.source)
	var (
		calc        bom.StockCalculation
		deactivated = make([]uuid.UUID, 0)
	)
	for _, item := range resolved.ActiveItems() {
		reading, err := c.readLive(ctx, target, item, cache)
		if err != nil {
			c.logger.Error("unreadable BOM item skipped",
				zap.String("item_id", item.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if reading.stale != "" {
			if c.deactivate(ctx, item, reading.stale) {
				deactivated = append(deactivated, item.ID)
			}
			continue
		}
		if !calc.Include(item, reading.stock, reading.origin) {
			c.logger.Warn("BOM item with non-positive requirement skipped",
				zap.String("item_id", item.ID.String()),
				zap.String("quantity", item.Quantity.String()),
				zap.String("waste_factor", item.WasteFactor.String()),
			)
		}
	}

	effective, ok := calc.Result()
	if !ok {
		return nil, nil
	}

	current, status := c.currentExternalStock(ctx, target, composite, cache)
	result := newEffectiveStockResult(resolved, &calc, effective, current)
	result.CurrentExternalStatus = status
	result.DeactivatedItems = deactivated
	result.composite = composite
	return result, nil
}

// CalculateLocal runs the same arithmetic on cached and local data only. It
// never calls the platform and never writes.
func (c *StockCalculator) CalculateLocal(ctx context.Context, target bom.SyncTarget) (*EffectiveStockResult, error) {
	resolved, err := c.resolver.Resolve(ctx, target.TenantID, target.ProductID, target.VariantID)
	if err != nil || resolved == nil {
		return nil, err
	}

	composite, err := c.products.FindByID(ctx, target.TenantID, target.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load composite %s: %w", target.ProductID, err)
	}

	var calc bom.StockCalculation
	for _, item := range resolved.ActiveItems() {
		stock, origin, err := readLocal(item)
		if err != nil {
			c.logger.Error("unreadable BOM item skipped",
				zap.String("item_id", item.ID.String()),
				zap.Error(err),
			)
			continue
		}
		calc.Include(item, stock, origin)
	}

	effective, ok := calc.Result()
	if !ok {
		return nil, nil
	}

	cached, err := c.cachedCompositeStock(ctx, target, composite)
	if err != nil {
		return nil, err
	}
	result := newEffectiveStockResult(resolved, &calc, effective, cached.Quantity)
	result.CurrentExternalStatus = cached.Status
	result.Local = true
	result.composite = composite
	return result, nil
}

func (c *StockCalculator) readLive(ctx context.Context, target bom.SyncTarget, item bom.BOMItem, cache *VariantListCache) (componentReading, error) {
	switch comp := item.Component.(type) {
	case bom.InternalItemComponent:
		return componentReading{stock: comp.Item.StockQuantity, origin: bom.StockFromLocal}, nil

	case bom.ExternalProductComponent:
		live, err := c.source.GetProduct(ctx, target.TenantID, comp.Product.ExternalID)
		if err != nil {
			if integration.IsNotFound(err) {
				return componentReading{stale: bom.ReasonComponentDeleted}, nil
			}
			c.logger.Warn("component fetch failed, using cached stock",
				zap.Int64("external_product_id", comp.Product.ExternalID),
				zap.Error(err),
			)
			return cachedReading(&comp.Product.Stock), nil
		}
		if live.StockQuantity == nil {
			return cachedReading(&comp.Product.Stock), nil
		}
		if comp.Product.Stock.Differs(live.StockQuantity) {
			if err := c.products.UpdateProductStockCache(ctx, target.TenantID, comp.Product.ID, live.StockQuantity, live.StockStatus); err != nil {
				c.logger.Warn("component stock cache write-back failed",
					zap.String("product_id", comp.Product.ID.String()),
					zap.Error(err),
				)
			}
		}
		return componentReading{stock: decimal.NewFromInt(*live.StockQuantity), origin: bom.StockFromLive}, nil

	case bom.ExternalVariantComponent:
		variants, err := cache.Variants(ctx, target.TenantID, comp.Product.ExternalID)
		if err != nil {
			if integration.IsNotFound(err) {
				return componentReading{stale: bom.ReasonComponentDeleted}, nil
			}
			c.logger.Warn("variant list fetch failed, using cached stock",
				zap.Int64("external_product_id", comp.Product.ExternalID),
				zap.Int64("external_variant_id", comp.Variant.ExternalID),
				zap.Error(err),
			)
			return cachedReading(&comp.Variant.Stock), nil
		}
		live, ok := integration.FindVariant(variants, comp.Variant.ExternalID)
		if !ok {
			return componentReading{stale: bom.ReasonVariantDeleted}, nil
		}
		if live.StockQuantity == nil {
			return cachedReading(&comp.Variant.Stock), nil
		}
		if comp.Variant.Stock.Differs(live.StockQuantity) {
			if err := c.products.UpdateVariantStockCache(ctx, target.TenantID, comp.Variant.ID, live.StockQuantity, live.StockStatus); err != nil {
				c.logger.Warn("variant stock cache write-back failed",
					zap.String("variant_id", comp.Variant.ID.String()),
					zap.Error(err),
				)
			}
		}
		return componentReading{stock: decimal.NewFromInt(*live.StockQuantity), origin: bom.StockFromLive}, nil
	}

	return componentReading{}, fmt.Errorf("unsupported component %T", item.Component)
}

func readLocal(item bom.BOMItem) (decimal.Decimal, bom.StockOrigin, error) {
	switch comp := item.Component.(type) {
	case bom.InternalItemComponent:
		return comp.Item.StockQuantity, bom.StockFromLocal, nil
	case bom.ExternalProductComponent:
		r := cachedReading(&comp.Product.Stock)
		return r.stock, r.origin, nil
	case bom.ExternalVariantComponent:
		r := cachedReading(&comp.Variant.Stock)
		return r.stock, r.origin, nil
	}
	return decimal.Zero, "", fmt.Errorf("unsupported component %T", item.Component)
}

// cachedReading uses the last observed quantity. Never-observed stock counts as zero.
func cachedReading(cached *bom.CachedStock) componentReading {
	quantity, _ := cached.Known()
	return componentReading{stock: decimal.NewFromInt(quantity), origin: bom.StockFromCache}
}

func (c *StockCalculator) deactivate(ctx context.Context, item bom.BOMItem, reason bom.DeactivationReason) bool {
	c.logger.Warn("stale BOM item deactivated",
		zap.String("item_id", item.ID.String()),
		zap.String("component", item.Component.Label()),
		zap.String("reason", string(reason)),
	)
	if err := c.boms.DeactivateItem(ctx, item.ID, reason); err != nil {
		c.logger.Error("failed to deactivate stale BOM item",
			zap.String("item_id", item.ID.String()),
			zap.Error(err),
		)
		return false
	}
	c.recorder.RecordDeactivation(ctx, reason, 1)
	return true
}

// currentExternalStock returns the composite's stock and status on the
// platform. Both are zero when they cannot be determined.
func (c *StockCalculator) currentExternalStock(ctx context.Context, target bom.SyncTarget, composite *bom.Product, cache *VariantListCache) (*int64, integration.StockStatus) {
	if !target.IsVariantScoped() {
		live, err := c.source.GetProduct(ctx, target.TenantID, composite.ExternalID)
		if err != nil {
			c.logger.Warn("composite stock unknown",
				zap.Int64("external_product_id", composite.ExternalID),
				zap.Error(err),
			)
			return nil, ""
		}
		return live.StockQuantity, live.StockStatus
	}

	variants, err := cache.Variants(ctx, target.TenantID, composite.ExternalID)
	if err != nil {
		c.logger.Warn("composite variant stock unknown",
			zap.Int64("external_product_id", composite.ExternalID),
			zap.Int64("external_variant_id", target.VariantID),
			zap.Error(err),
		)
		return nil, ""
	}
	live, ok := integration.FindVariant(variants, target.VariantID)
	if !ok {
		return nil, ""
	}
	return live.StockQuantity, live.StockStatus
}

func (c *StockCalculator) cachedCompositeStock(ctx context.Context, target bom.SyncTarget, composite *bom.Product) (bom.CachedStock, error) {
	if !target.IsVariantScoped() {
		return composite.Stock, nil
	}
	variant, err := c.products.FindVariantByExternalID(ctx, target.TenantID, target.ProductID, target.VariantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return bom.CachedStock{}, nil
		}
		return bom.CachedStock{}, fmt.Errorf("load composite variant %d: %w", target.VariantID, err)
	}
	return variant.Stock, nil
}
