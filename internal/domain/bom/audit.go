package bom

import (
	"time"

	"github.com/google/uuid"
)

// SystemActor is recorded on every audit entry written by the engine
const SystemActor = "system:BOM"

// ValidationOutcome is the result of the pre-write checks
type ValidationOutcome string

const (
	ValidationPassed ValidationOutcome = "passed"
)

// SyncTrigger says what started a sync
type SyncTrigger string

const (
	TriggerManual         SyncTrigger = "manual"
	TriggerScheduled      SyncTrigger = "scheduled"
	TriggerOrderCompleted SyncTrigger = "order_completed"
)

// AuditContext explains why a stock change happened
type AuditContext struct {
	Trigger          SyncTrigger     `json:"trigger"`
	OrderRef         string          `json:"order_ref,omitempty"`
	VariantID        int64           `json:"variant_id"`
	Components       []ComponentLine `json:"components"`
	BottleneckItemID *uuid.UUID      `json:"bottleneck_item_id,omitempty"`
}

// StockAuditEntry is an immutable record of one external stock write
type StockAuditEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ProductID     uuid.UUID
	VariantID     int64
	Actor         string
	PreviousStock *int64
	NewStock      int64
	Validation    ValidationOutcome
	Context       AuditContext
	CreatedAt     time.Time
}

// NewStockAuditEntry records a successful write of newStock on target
func NewStockAuditEntry(target SyncTarget, previous *int64, newStock int64, ctx AuditContext) *StockAuditEntry {
	ctx.VariantID = target.VariantID
	return &StockAuditEntry{
		ID:            uuid.New(),
		TenantID:      target.TenantID,
		ProductID:     target.ProductID,
		VariantID:     target.VariantID,
		Actor:         SystemActor,
		PreviousStock: previous,
		NewStock:      newStock,
		Validation:    ValidationPassed,
		Context:       ctx,
		CreatedAt:     time.Now(),
	}
}
