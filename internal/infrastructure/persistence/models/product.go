package models

import (
	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for a platform product mirror
type ProductModel struct {
	SoftDeleteModel
	ExternalID    int64  `gorm:"not null;index"`
	Name          string `gorm:"type:varchar(255);not null"`
	SKU           string `gorm:"column:sku;type:varchar(100)"`
	HasVariants   bool   `gorm:"not null"`
	ManageStock   bool   `gorm:"not null"`
	StockQuantity *int64
	StockStatus   string `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *bom.Product {
	return &bom.Product{
		TenantEntity: m.ToTenantEntity(),
		ExternalID:   m.ExternalID,
		Name:         m.Name,
		SKU:          m.SKU,
		HasVariants:  m.HasVariants,
		ManageStock:  m.ManageStock,
		Stock:        cachedStock(m.StockQuantity, m.StockStatus),
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *bom.Product) {
	m.FromDomainTenantEntity(p.TenantEntity)
	m.ExternalID = p.ExternalID
	m.Name = p.Name
	m.SKU = p.SKU
	m.HasVariants = p.HasVariants
	m.ManageStock = p.ManageStock
	m.StockQuantity = p.Stock.Quantity
	m.StockStatus = string(p.Stock.Status)
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *bom.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

// ProductVariantModel is the persistence model for a platform variation mirror
type ProductVariantModel struct {
	SoftDeleteModel
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalID    int64     `gorm:"not null"`
	SKU           string    `gorm:"column:sku;type:varchar(100)"`
	Name          string    `gorm:"type:varchar(255)"`
	StockQuantity *int64
	StockStatus   string `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain ProductVariant
func (m *ProductVariantModel) ToDomain() *bom.ProductVariant {
	return &bom.ProductVariant{
		TenantEntity: m.ToTenantEntity(),
		ProductID:    m.ProductID,
		ExternalID:   m.ExternalID,
		SKU:          m.SKU,
		Name:         m.Name,
		Stock:        cachedStock(m.StockQuantity, m.StockStatus),
	}
}

// FromDomain populates the persistence model from a domain ProductVariant
func (m *ProductVariantModel) FromDomain(v *bom.ProductVariant) {
	m.FromDomainTenantEntity(v.TenantEntity)
	m.ProductID = v.ProductID
	m.ExternalID = v.ExternalID
	m.SKU = v.SKU
	m.Name = v.Name
	m.StockQuantity = v.Stock.Quantity
	m.StockStatus = string(v.Stock.Status)
}

// ProductVariantModelFromDomain creates a new persistence model from a domain ProductVariant
func ProductVariantModelFromDomain(v *bom.ProductVariant) *ProductVariantModel {
	m := &ProductVariantModel{}
	m.FromDomain(v)
	return m
}

// InternalItemModel is the persistence model for internal-only stock
type InternalItemModel struct {
	SoftDeleteModel
	Name          string          `gorm:"type:varchar(255);not null"`
	SKU           string          `gorm:"column:sku;type:varchar(100);index"`
	StockQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InternalItemModel) TableName() string {
	return "internal_items"
}

// ToDomain converts the persistence model to a domain InternalItem
func (m *InternalItemModel) ToDomain() *bom.InternalItem {
	return &bom.InternalItem{
		TenantEntity:  m.ToTenantEntity(),
		Name:          m.Name,
		SKU:           m.SKU,
		StockQuantity: m.StockQuantity,
	}
}

// FromDomain populates the persistence model from a domain InternalItem
func (m *InternalItemModel) FromDomain(i *bom.InternalItem) {
	m.FromDomainTenantEntity(i.TenantEntity)
	m.Name = i.Name
	m.SKU = i.SKU
	m.StockQuantity = i.StockQuantity
}

// InternalItemModelFromDomain creates a new persistence model from a domain InternalItem
func InternalItemModelFromDomain(i *bom.InternalItem) *InternalItemModel {
	m := &InternalItemModel{}
	m.FromDomain(i)
	return m
}

func cachedStock(quantity *int64, status string) bom.CachedStock {
	return bom.CachedStock{
		Quantity: quantity,
		Status:   integration.StockStatus(status),
	}
}
