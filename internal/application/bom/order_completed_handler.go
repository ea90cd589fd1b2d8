package bom

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/shared"
	"go.uber.org/zap"
)

// OrderCompletedHandler re-syncs the composites that consume the components
// of a completed order, so effective stock reacts before the next bulk pass.
type OrderCompletedHandler struct {
	products bom.ProductRepository
	boms     bom.BOMRepository
	syncer   Syncer
	logger   *zap.Logger
}

// NewOrderCompletedHandler creates a new OrderCompletedHandler
func NewOrderCompletedHandler(products bom.ProductRepository, boms bom.BOMRepository, syncer Syncer, logger *zap.Logger) *OrderCompletedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCompletedHandler{
		products: products,
		boms:     boms,
		syncer:   syncer,
		logger:   logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderCompletedHandler) EventTypes() []string {
	return []string{bom.EventTypeOrderCompleted}
}

// Handle syncs every affected composite once. Lookup and sync failures are
// logged per composite and never returned, so order processing is not blocked.
func (h *OrderCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	orderEvent, ok := event.(*bom.OrderCompletedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			bom.EventTypeOrderCompleted, event.EventType())
	}

	log := h.logger.With(
		zap.String("tenant_id", orderEvent.AccountID.String()),
		zap.String("order_ref", orderEvent.OrderRef),
	)

	targets := h.affectedTargets(ctx, orderEvent, log)
	if len(targets) == 0 {
		log.Debug("order touches no composite")
		return nil
	}

	failed := 0
	for _, target := range targets {
		result := h.syncer.Sync(ctx, SyncRequest{
			Target:   target,
			Trigger:  bom.TriggerOrderCompleted,
			OrderRef: orderEvent.OrderRef,
		})
		if result == nil || result.Outcome == OutcomeFailed {
			failed++
			msg := "no result"
			if result != nil {
				msg = result.Error
			}
			log.Error("order-triggered re-sync failed",
				zap.String("product_id", target.ProductID.String()),
				zap.Int64("variant_id", target.VariantID),
				zap.String("error", msg),
			)
		}
	}

	log.Info("order-triggered re-sync done",
		zap.Int("composites", len(targets)),
		zap.Int("failed", failed),
	)
	return nil
}

func (h *OrderCompletedHandler) affectedTargets(ctx context.Context, event *bom.OrderCompletedEvent, log *zap.Logger) []bom.SyncTarget {
	seen := make(map[bom.SyncTarget]struct{})
	targets := make([]bom.SyncTarget, 0)

	for _, line := range event.LineItems {
		lookup, ok := h.lookupFor(ctx, event, line, log)
		if !ok {
			continue
		}
		found, err := h.boms.FindTargetsByComponent(ctx, event.AccountID, lookup)
		if err != nil {
			log.Error("failed to find composites for component",
				zap.Int64("external_product_id", line.ExternalProductID),
				zap.Error(err),
			)
			continue
		}
		for _, t := range found {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			targets = append(targets, t)
		}
	}
	return targets
}

func (h *OrderCompletedHandler) lookupFor(ctx context.Context, event *bom.OrderCompletedEvent, line bom.OrderLineItem, log *zap.Logger) (bom.ComponentLookup, bool) {
	product, err := h.products.FindByExternalID(ctx, event.AccountID, line.ExternalProductID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			log.Error("failed to load ordered product",
				zap.Int64("external_product_id", line.ExternalProductID),
				zap.Error(err),
			)
		}
		return bom.ComponentLookup{}, false
	}

	lookup := bom.ComponentLookup{ProductID: product.ID}
	if line.VariantID == nil || *line.VariantID == 0 {
		return lookup, true
	}

	variant, err := h.products.FindVariantByExternalID(ctx, event.AccountID, product.ID, *line.VariantID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			log.Error("failed to load ordered variant",
				zap.Int64("external_variant_id", *line.VariantID),
				zap.Error(err),
			)
		}
		return lookup, true
	}
	lookup.VariantID = &variant.ID
	return lookup, true
}

var _ shared.EventHandler = (*OrderCompletedHandler)(nil)
