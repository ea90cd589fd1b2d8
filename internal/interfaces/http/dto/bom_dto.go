package dto

import (
	"time"

	"github.com/google/uuid"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/infrastructure/scheduler"
)

// DefaultAuditLimit is used when the audit query has no limit
const DefaultAuditLimit = 50

// TargetQuery selects the variant of a composite; 0 is the default BOM
type TargetQuery struct {
	VariantID int64 `form:"variant_id" binding:"min=0"`
}

// AuditQuery bounds the audit listing
type AuditQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// OrderLineItemRequest is one sold line of a completed order
type OrderLineItemRequest struct {
	ExternalProductID int64  `json:"external_product_id" binding:"required,gt=0"`
	VariantID         *int64 `json:"variant_id" binding:"omitempty,gt=0"`
	QuantitySold      int64  `json:"quantity_sold" binding:"gte=0"`
}

// OrderCompletedRequest is the order-completed webhook payload
type OrderCompletedRequest struct {
	OrderRef  string                 `json:"order_ref" binding:"required,max=128"`
	LineItems []OrderLineItemRequest `json:"line_items" binding:"required,min=1,dive"`
}

// ToLineItems converts the request lines to domain line items
func (r OrderCompletedRequest) ToLineItems() []bom.OrderLineItem {
	items := make([]bom.OrderLineItem, len(r.LineItems))
	for i, line := range r.LineItems {
		items[i] = bom.OrderLineItem{
			ExternalProductID: line.ExternalProductID,
			VariantID:         line.VariantID,
			QuantitySold:      line.QuantitySold,
		}
	}
	return items
}

// OrderAcceptedResponse acknowledges a webhook
type OrderAcceptedResponse struct {
	EventID  uuid.UUID `json:"event_id"`
	OrderRef string    `json:"order_ref"`
}

// EffectiveStockResponse is one calculation
type EffectiveStockResponse struct {
	ProductID            uuid.UUID           `json:"product_id"`
	VariantID            int64               `json:"variant_id"`
	BOMID                uuid.UUID           `json:"bom_id"`
	EffectiveStock       int64               `json:"effective_stock"`
	CurrentExternalStock *int64              `json:"current_external_stock"`
	CurrentStockStatus   string              `json:"current_stock_status,omitempty"`
	NeedsSync            bool                `json:"needs_sync"`
	Local                bool                `json:"local"`
	Components           []bom.ComponentLine `json:"components"`
	Bottleneck           *bom.ComponentLine  `json:"bottleneck,omitempty"`
	DeactivatedItems     []uuid.UUID         `json:"deactivated_items,omitempty"`
}

// NewEffectiveStockResponse converts a calculation result
func NewEffectiveStockResponse(r *appbom.EffectiveStockResult) EffectiveStockResponse {
	return EffectiveStockResponse{
		ProductID:            r.Target.ProductID,
		VariantID:            r.Target.VariantID,
		BOMID:                r.BOMID,
		EffectiveStock:       r.EffectiveStock,
		CurrentExternalStock: r.CurrentExternalStock,
		CurrentStockStatus:   string(r.CurrentExternalStatus),
		NeedsSync:            r.NeedsSync,
		Local:                r.Local,
		Components:           r.Components,
		Bottleneck:           r.Bottleneck,
		DeactivatedItems:     r.DeactivatedItems,
	}
}

// SyncResultResponse is the outcome of one sync
type SyncResultResponse struct {
	ProductID        uuid.UUID `json:"product_id"`
	VariantID        int64     `json:"variant_id"`
	Outcome          string    `json:"outcome"`
	Success          bool      `json:"success"`
	PreviousStock    *int64    `json:"previous_stock"`
	NewStock         *int64    `json:"new_stock"`
	LocalDBUpdated   bool      `json:"local_db_updated"`
	DeactivatedItems int       `json:"deactivated_items"`
	AuditError       string    `json:"audit_error,omitempty"`
}

// NewSyncResultResponse converts a sync result
func NewSyncResultResponse(r *appbom.SyncResult) SyncResultResponse {
	return SyncResultResponse{
		ProductID:        r.Target.ProductID,
		VariantID:        r.Target.VariantID,
		Outcome:          string(r.Outcome),
		Success:          r.Success,
		PreviousStock:    r.PreviousStock,
		NewStock:         r.NewStock,
		LocalDBUpdated:   r.LocalDBUpdated,
		DeactivatedItems: r.DeactivatedItems,
		AuditError:       r.AuditError,
	}
}

// AuditEntryResponse is one stock audit record
type AuditEntryResponse struct {
	ID            uuid.UUID        `json:"id"`
	ProductID     uuid.UUID        `json:"product_id"`
	VariantID     int64            `json:"variant_id"`
	Actor         string           `json:"actor"`
	PreviousStock *int64           `json:"previous_stock"`
	NewStock      int64            `json:"new_stock"`
	Validation    string           `json:"validation"`
	Context       bom.AuditContext `json:"context"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewAuditEntryResponses converts audit entries
func NewAuditEntryResponses(entries []bom.StockAuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:            e.ID,
			ProductID:     e.ProductID,
			VariantID:     e.VariantID,
			Actor:         e.Actor,
			PreviousStock: e.PreviousStock,
			NewStock:      e.NewStock,
			Validation:    string(e.Validation),
			Context:       e.Context,
			CreatedAt:     e.CreatedAt,
		}
	}
	return out
}

// SyncJobResponse is a bulk sync job snapshot
type SyncJobResponse struct {
	ID          uuid.UUID               `json:"id"`
	TenantID    uuid.UUID               `json:"tenant_id"`
	Trigger     string                  `json:"trigger"`
	Status      string                  `json:"status"`
	Error       string                  `json:"error,omitempty"`
	Summary     *appbom.BulkSyncSummary `json:"summary,omitempty"`
	RetryCount  int                     `json:"retry_count"`
	CreatedAt   time.Time               `json:"created_at"`
	StartedAt   *time.Time              `json:"started_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
}

// NewSyncJobResponse converts a job snapshot
func NewSyncJobResponse(job scheduler.BulkSyncJob) SyncJobResponse {
	return SyncJobResponse{
		ID:          job.ID,
		TenantID:    job.TenantID,
		Trigger:     string(job.Trigger),
		Status:      string(job.Status),
		Error:       job.Error,
		Summary:     job.Summary,
		RetryCount:  job.RetryCount,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
