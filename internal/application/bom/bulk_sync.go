package bom

import (
	"context"
	"fmt"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// BulkSyncService syncs every composite of an account, one at a time
type BulkSyncService struct {
	boms     bom.BOMRepository
	syncer   Syncer
	recorder SyncRecorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewBulkSyncService creates a new BulkSyncService
func NewBulkSyncService(boms bom.BOMRepository, syncer Syncer, logger *zap.Logger) *BulkSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkSyncService{
		boms:     boms,
		syncer:   syncer,
		recorder: noopRecorder{},
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
}

// SetRecorder sets the telemetry recorder
func (b *BulkSyncService) SetRecorder(recorder SyncRecorder) {
	if recorder != nil {
		b.recorder = recorder
	}
}

// SyncAll syncs each (product, variant) of the tenant that has an active BOM
// line. A failing or panicking target is counted and the loop continues. The
// returned error is only set when the targets cannot be listed or ctx ends the
// run early; the summary then holds the counts so far.
func (b *BulkSyncService) SyncAll(ctx context.Context, tenantID uuid.UUID, trigger bom.SyncTrigger) (*BulkSyncSummary, error) {
	ctx, span := b.tracer.Start(ctx, "bom.SyncAll", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("sync.trigger", string(trigger)),
	))
	defer span.End()

	summary := &BulkSyncSummary{TenantID: tenantID}

	targets, err := b.boms.ListSyncTargets(ctx, tenantID)
	if err != nil {
		return summary, fmt.Errorf("list sync targets: %w", err)
	}
	summary.Total = len(targets)

	b.logger.Info("bulk sync started",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("targets", len(targets)),
		zap.String("trigger", string(trigger)),
	)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("bulk sync interrupted",
				zap.String("tenant_id", tenantID.String()),
				zap.Int("remaining", summary.Total-summary.Synced-summary.Skipped-summary.Failed),
			)
			return summary, err
		}

		outcome := b.syncOne(ctx, SyncRequest{Target: target, Trigger: trigger})
		summary.count(outcome)
	}

	span.SetAttributes(
		attribute.Int("sync.total", summary.Total),
		attribute.Int("sync.synced", summary.Synced),
		attribute.Int("sync.skipped", summary.Skipped),
		attribute.Int("sync.failed", summary.Failed),
	)
	b.recorder.RecordBulkRun(ctx, *summary)
	b.logger.Info("bulk sync completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("total", summary.Total),
		zap.Int("synced", summary.Synced),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// syncOne keeps only the outcome so results are not retained across the run
func (b *BulkSyncService) syncOne(ctx context.Context, req SyncRequest) (outcome SyncOutcome) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic while syncing composite",
				zap.String("product_id", req.Target.ProductID.String()),
				zap.Int64("variant_id", req.Target.VariantID),
				zap.Any("panic", r),
			)
			outcome = OutcomeFailed
		}
	}()

	result := b.syncer.Sync(ctx, req)
	if result == nil {
		return OutcomeFailed
	}
	if result.Outcome == OutcomeFailed {
		b.logger.Warn("composite sync failed",
			zap.String("product_id", req.Target.ProductID.String()),
			zap.Int64("variant_id", req.Target.VariantID),
			zap.String("error", result.Error),
		)
	}
	return result.Outcome
}
