package bom

import (
	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/google/uuid"
)

// EffectiveStockResult is the outcome of one calculation
type EffectiveStockResult struct {
	Target         bom.SyncTarget
	BOMID          uuid.UUID
	EffectiveStock int64
	// CurrentExternalStock is nil when the platform stock is unknown
	CurrentExternalStock *int64
	// CurrentExternalStatus is the availability the platform reports, which
	// may be onbackorder; empty when unknown
	CurrentExternalStatus integration.StockStatus
	NeedsSync             bool
	Local                bool
	Components           []bom.ComponentLine
	Bottleneck           *bom.ComponentLine
	DeactivatedItems     []uuid.UUID

	composite *bom.Product
}

func newEffectiveStockResult(b *bom.BillOfMaterials, calc *bom.StockCalculation, effective int64, current *int64) *EffectiveStockResult {
	result := &EffectiveStockResult{
		Target:               b.Target(),
		BOMID:                b.ID,
		EffectiveStock:       effective,
		CurrentExternalStock: current,
		NeedsSync:            current == nil || *current != effective,
		Components:           calc.Lines(),
	}
	if line, ok := calc.Bottleneck(); ok {
		result.Bottleneck = &line
	}
	return result
}

// SyncOutcome classifies a sync
type SyncOutcome string

const (
	// OutcomeSynced means the platform stock was written
	OutcomeSynced SyncOutcome = "synced"
	// OutcomeInSync means no write was needed
	OutcomeInSync SyncOutcome = "in_sync"
	// OutcomeLocked means another sync held the target's lock
	OutcomeLocked SyncOutcome = "locked"
	// OutcomeFailed covers calculation, guard and write failures
	OutcomeFailed SyncOutcome = "failed"
)

// SyncRequest asks for one composite to be synced
type SyncRequest struct {
	Target   bom.SyncTarget
	Trigger  bom.SyncTrigger
	OrderRef string
}

// SyncResult is the transient outcome of one sync
type SyncResult struct {
	Target           bom.SyncTarget
	Outcome          SyncOutcome
	Success          bool
	PreviousStock    *int64
	NewStock         *int64
	LocalDBUpdated   bool
	DeactivatedItems int
	Error            string
	AuditError       string

	err error
}

// Err returns the underlying failure, if any
func (r *SyncResult) Err() error {
	return r.err
}

// NewFailedSyncResult returns a failed result for target carrying err
func NewFailedSyncResult(target bom.SyncTarget, err error) *SyncResult {
	return (&SyncResult{Target: target}).fail(err)
}

func (r *SyncResult) fail(err error) *SyncResult {
	r.Outcome = OutcomeFailed
	r.Success = false
	r.err = err
	r.Error = err.Error()
	return r
}

// BulkSyncSummary holds the counts of a bulk run. Per-item results are not kept.
type BulkSyncSummary struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Total    int       `json:"total"`
	Synced   int       `json:"synced"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

func (s *BulkSyncSummary) count(outcome SyncOutcome) {
	switch outcome {
	case OutcomeSynced:
		s.Synced++
	case OutcomeInSync, OutcomeLocked:
		s.Skipped++
	default:
		s.Failed++
	}
}
