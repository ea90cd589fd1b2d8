package bom

import (
	"context"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
)

// SyncRecorder receives sync telemetry
type SyncRecorder interface {
	RecordSync(ctx context.Context, outcome SyncOutcome, duration time.Duration)
	RecordStockWrite(ctx context.Context, target bom.SyncTarget)
	RecordDeactivation(ctx context.Context, reason bom.DeactivationReason, count int)
	RecordBulkRun(ctx context.Context, summary BulkSyncSummary)
}

type noopRecorder struct{}

func (noopRecorder) RecordSync(context.Context, SyncOutcome, time.Duration)           {}
func (noopRecorder) RecordStockWrite(context.Context, bom.SyncTarget)                 {}
func (noopRecorder) RecordDeactivation(context.Context, bom.DeactivationReason, int) {}
func (noopRecorder) RecordBulkRun(context.Context, BulkSyncSummary)                   {}
