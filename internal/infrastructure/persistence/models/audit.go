package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
)

// StockAuditLogModel is an append-only record of a stock write
type StockAuditLogModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_stock_audit_tenant_product,priority:1"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index:idx_stock_audit_tenant_product,priority:2"`
	VariantID     int64     `gorm:"not null"`
	Actor         string    `gorm:"type:varchar(64);not null"`
	PreviousStock *int64
	NewStock      int64     `gorm:"not null"`
	Validation    string    `gorm:"type:varchar(32);not null"`
	Context       string    `gorm:"type:jsonb"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (StockAuditLogModel) TableName() string {
	return "stock_audit_logs"
}

// ToDomain converts the model to a domain StockAuditEntry
func (m *StockAuditLogModel) ToDomain() (*bom.StockAuditEntry, error) {
	entry := &bom.StockAuditEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ProductID:     m.ProductID,
		VariantID:     m.VariantID,
		Actor:         m.Actor,
		PreviousStock: m.PreviousStock,
		NewStock:      m.NewStock,
		Validation:    bom.ValidationOutcome(m.Validation),
		CreatedAt:     m.CreatedAt,
	}
	if m.Context != "" {
		if err := json.Unmarshal([]byte(m.Context), &entry.Context); err != nil {
			return nil, fmt.Errorf("decode audit context %s: %w", m.ID, err)
		}
	}
	return entry, nil
}

// StockAuditLogModelFromDomain creates the persistence model for an entry
func StockAuditLogModelFromDomain(e *bom.StockAuditEntry) (*StockAuditLogModel, error) {
	ctx, err := json.Marshal(e.Context)
	if err != nil {
		return nil, fmt.Errorf("encode audit context: %w", err)
	}
	return &StockAuditLogModel{
		ID:            e.ID,
		TenantID:      e.TenantID,
		ProductID:     e.ProductID,
		VariantID:     e.VariantID,
		Actor:         e.Actor,
		PreviousStock: e.PreviousStock,
		NewStock:      e.NewStock,
		Validation:    string(e.Validation),
		Context:       string(ctx),
		CreatedAt:     e.CreatedAt,
	}, nil
}
