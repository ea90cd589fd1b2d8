package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/domain/bom"
)

// SyncMetricsMeterName is the instrumentation scope of the sync metrics
const SyncMetricsMeterName = "bomsync/sync"

// SyncMetrics records composite stock sync telemetry
type SyncMetrics struct {
	syncs         *Counter
	syncDuration  *Histogram
	stockWrites   *Counter
	deactivations *Counter
	bulkRuns      *Counter
	bulkTargets   *Counter
}

// NewSyncMetrics registers the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	m := &SyncMetrics{}
	var err error

	if m.syncs, err = NewCounter(meter, "bom_sync_total", "Composite stock syncs by outcome", "{sync}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter, "bom_sync_duration_seconds", "Duration of a single composite sync", "s", SyncDurationBuckets...); err != nil {
		return nil, err
	}
	if m.stockWrites, err = NewCounter(meter, "bom_stock_writes_total", "Stock writes issued to the platform", "{write}"); err != nil {
		return nil, err
	}
	if m.deactivations, err = NewCounter(meter, "bom_items_deactivated_total", "BOM items deactivated as stale", "{item}"); err != nil {
		return nil, err
	}
	if m.bulkRuns, err = NewCounter(meter, "bom_bulk_sync_runs_total", "Completed bulk sync runs", "{run}"); err != nil {
		return nil, err
	}
	if m.bulkTargets, err = NewCounter(meter, "bom_bulk_sync_targets_total", "Targets visited by bulk sync runs by outcome", "{target}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordSync counts a sync and its duration
func (m *SyncMetrics) RecordSync(ctx context.Context, outcome appbom.SyncOutcome, duration time.Duration) {
	m.syncs.Inc(ctx, AttrOutcome.String(string(outcome)))
	m.syncDuration.RecordDuration(ctx, duration, AttrOutcome.String(string(outcome)))
}

// RecordStockWrite counts a successful platform write
func (m *SyncMetrics) RecordStockWrite(ctx context.Context, target bom.SyncTarget) {
	kind := "product"
	if target.IsVariantScoped() {
		kind = "variant"
	}
	m.stockWrites.Inc(ctx, AttrTargetKind.String(kind))
}

// RecordDeactivation counts deactivated BOM items
func (m *SyncMetrics) RecordDeactivation(ctx context.Context, reason bom.DeactivationReason, count int) {
	if count <= 0 {
		return
	}
	m.deactivations.Add(ctx, int64(count), AttrReason.String(string(reason)))
}

// RecordBulkRun counts a finished bulk run and its per-outcome totals
func (m *SyncMetrics) RecordBulkRun(ctx context.Context, summary appbom.BulkSyncSummary) {
	m.bulkRuns.Inc(ctx)
	m.bulkTargets.Add(ctx, int64(summary.Synced), AttrOutcome.String("synced"))
	m.bulkTargets.Add(ctx, int64(summary.Skipped), AttrOutcome.String("skipped"))
	m.bulkTargets.Add(ctx, int64(summary.Failed), AttrOutcome.String("failed"))
}

var _ appbom.SyncRecorder = (*SyncMetrics)(nil)
