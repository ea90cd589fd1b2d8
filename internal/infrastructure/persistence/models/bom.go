package models

import (
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOMModel is the persistence model for a bill of materials.
// (tenant_id, product_id, variant_id) is unique; variant_id 0 is the default BOM.
type BOMModel struct {
	TenantModel
	ProductID uuid.UUID `gorm:"type:uuid;not null;index"`
	VariantID int64     `gorm:"not null"`
	Name      string    `gorm:"type:varchar(255)"`

	Items []BOMItemModel `gorm:"foreignKey:BOMID"`
}

// TableName returns the table name for GORM
func (BOMModel) TableName() string {
	return "boms"
}

// ToDomain converts the model and its loaded items. Items whose component
// association did not load (soft-deleted or missing) are left out.
func (m *BOMModel) ToDomain() *bom.BillOfMaterials {
	b := &bom.BillOfMaterials{
		TenantEntity: m.ToTenantEntity(),
		ProductID:    m.ProductID,
		VariantID:    m.VariantID,
		Name:         m.Name,
		Items:        make([]bom.BOMItem, 0, len(m.Items)),
	}
	for i := range m.Items {
		if item, ok := m.Items[i].ToDomain(); ok {
			b.Items = append(b.Items, item)
		}
	}
	return b
}

// FromDomain populates the model from a domain BOM, items included
func (m *BOMModel) FromDomain(b *bom.BillOfMaterials) {
	m.FromDomainTenantEntity(b.TenantEntity)
	m.ProductID = b.ProductID
	m.VariantID = b.VariantID
	m.Name = b.Name
	m.Items = make([]BOMItemModel, len(b.Items))
	for i := range b.Items {
		m.Items[i].FromDomain(b.TenantID, b.ID, &b.Items[i])
	}
}

// BOMModelFromDomain creates a new persistence model from a domain BOM
func BOMModelFromDomain(b *bom.BillOfMaterials) *BOMModel {
	m := &BOMModel{}
	m.FromDomain(b)
	return m
}

// BOMItemModel is one component line. ComponentType says which of the three
// reference columns is populated: external_product sets ComponentProductID,
// external_variant sets ComponentProductID and ComponentVariantID,
// internal_item sets InternalItemID.
type BOMItemModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	BOMID              uuid.UUID       `gorm:"column:bom_id;type:uuid;not null;index"`
	ComponentType      string          `gorm:"type:varchar(32);not null"`
	ComponentProductID *uuid.UUID      `gorm:"type:uuid;index"`
	ComponentVariantID *uuid.UUID      `gorm:"type:uuid;index"`
	InternalItemID     *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	WasteFactor        decimal.Decimal `gorm:"type:decimal(9,4);not null"`
	IsActive           bool            `gorm:"not null;index"`
	DeactivatedReason  string          `gorm:"type:varchar(32)"`
	DeactivatedAt      *time.Time
	SortOrder          int       `gorm:"not null"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`

	ComponentProduct *ProductModel        `gorm:"foreignKey:ComponentProductID"`
	ComponentVariant *ProductVariantModel `gorm:"foreignKey:ComponentVariantID"`
	InternalItem     *InternalItemModel   `gorm:"foreignKey:InternalItemID"`
}

// TableName returns the table name for GORM
func (BOMItemModel) TableName() string {
	return "bom_items"
}

// ToDomain converts the line. ok is false when the association its type
// requires was not loaded.
func (m *BOMItemModel) ToDomain() (item bom.BOMItem, ok bool) {
	var component bom.Component
	switch bom.ComponentKind(m.ComponentType) {
	case bom.ComponentKindExternalProduct:
		if m.ComponentProduct == nil {
			return bom.BOMItem{}, false
		}
		component = bom.ExternalProductComponent{Product: m.ComponentProduct.ToDomain()}
	case bom.ComponentKindExternalVariant:
		if m.ComponentProduct == nil || m.ComponentVariant == nil {
			return bom.BOMItem{}, false
		}
		component = bom.ExternalVariantComponent{
			Product: m.ComponentProduct.ToDomain(),
			Variant: m.ComponentVariant.ToDomain(),
		}
	case bom.ComponentKindInternalItem:
		if m.InternalItem == nil {
			return bom.BOMItem{}, false
		}
		component = bom.InternalItemComponent{Item: m.InternalItem.ToDomain()}
	default:
		return bom.BOMItem{}, false
	}

	return bom.BOMItem{
		ID:                m.ID,
		BOMID:             m.BOMID,
		Component:         component,
		Quantity:          m.Quantity,
		WasteFactor:       m.WasteFactor,
		IsActive:          m.IsActive,
		DeactivatedReason: bom.DeactivationReason(m.DeactivatedReason),
		DeactivatedAt:     m.DeactivatedAt,
		SortOrder:         m.SortOrder,
	}, true
}

// FromDomain populates the line from a domain BOMItem. Associations are not
// set; only the reference columns are written.
func (m *BOMItemModel) FromDomain(tenantID, bomID uuid.UUID, item *bom.BOMItem) {
	m.ID = item.ID
	m.TenantID = tenantID
	m.BOMID = bomID
	m.ComponentType = string(item.Component.Kind())
	m.Quantity = item.Quantity
	m.WasteFactor = item.WasteFactor
	m.IsActive = item.IsActive
	m.DeactivatedReason = string(item.DeactivatedReason)
	m.DeactivatedAt = item.DeactivatedAt
	m.SortOrder = item.SortOrder

	m.ComponentProductID, m.ComponentVariantID, m.InternalItemID = nil, nil, nil
	switch c := item.Component.(type) {
	case bom.ExternalProductComponent:
		m.ComponentProductID = idPtr(c.Product.ID)
	case bom.ExternalVariantComponent:
		m.ComponentProductID = idPtr(c.Product.ID)
		m.ComponentVariantID = idPtr(c.Variant.ID)
	case bom.InternalItemComponent:
		m.InternalItemID = idPtr(c.Item.ID)
	}
}

func idPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
