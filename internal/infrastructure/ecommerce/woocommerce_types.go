package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/erp/bomsync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// WooCommerce REST payloads
// ---------------------------------------------------------------------------

// WooCommerceError is the error body returned by the REST API
type WooCommerceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

// WooCommerceProduct is the subset of a product resource the stock engine reads
type WooCommerceProduct struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	SKU           string                 `json:"sku"`
	Type          string                 `json:"type"`
	ManageStock   WooCommerceManageStock `json:"manage_stock"`
	StockQuantity *int64                 `json:"stock_quantity"`
	StockStatus   string                 `json:"stock_status"`
	Variations    []int64                `json:"variations"`
}

// WooCommerceVariation is the subset of a variation resource the stock engine reads
type WooCommerceVariation struct {
	ID            int64                  `json:"id"`
	ParentID      int64                  `json:"parent_id"`
	SKU           string                 `json:"sku"`
	ManageStock   WooCommerceManageStock `json:"manage_stock"`
	StockQuantity *int64                 `json:"stock_quantity"`
	StockStatus   string                 `json:"stock_status"`
}

// WooCommerceStockPayload is the body of a stock write
type WooCommerceStockPayload struct {
	ManageStock   bool   `json:"manage_stock"`
	StockQuantity int64  `json:"stock_quantity"`
	StockStatus   string `json:"stock_status"`
}

// WooCommerceManageStock decodes manage_stock, which variations report as
// either a bool or the string "parent" when stock is tracked on the parent.
type WooCommerceManageStock struct {
	Enabled  bool
	ByParent bool
}

// UnmarshalJSON accepts true, false, null and "parent"
func (m *WooCommerceManageStock) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = WooCommerceManageStock{}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*m = WooCommerceManageStock{Enabled: b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("woocommerce: invalid manage_stock value %s", string(data))
	}
	if s != "parent" {
		return fmt.Errorf("woocommerce: invalid manage_stock value %q", s)
	}
	*m = WooCommerceManageStock{ByParent: true}
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func (p *WooCommerceProduct) toPlatformProduct() *integration.PlatformProduct {
	return &integration.PlatformProduct{
		ExternalID:    p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Type:          p.Type,
		ManageStock:   p.ManageStock.Enabled,
		StockQuantity: p.StockQuantity,
		StockStatus:   integration.StockStatus(p.StockStatus),
		VariationIDs:  p.Variations,
	}
}

func (v *WooCommerceVariation) toPlatformVariant(parentID int64) integration.PlatformVariant {
	parent := v.ParentID
	if parent == 0 {
		parent = parentID
	}
	return integration.PlatformVariant{
		ExternalID:       v.ID,
		ParentExternalID: parent,
		SKU:              v.SKU,
		// parent-managed variations report the parent's quantity
		ManageStock:   v.ManageStock.Enabled,
		StockQuantity: v.StockQuantity,
		StockStatus:   integration.StockStatus(v.StockStatus),
	}
}

func newWooCommerceStockPayload(update integration.StockUpdate) WooCommerceStockPayload {
	status := update.Status
	if !status.IsValid() {
		status = integration.StockStatusFor(update.Quantity)
	}
	return WooCommerceStockPayload{
		ManageStock:   update.ManageStock,
		StockQuantity: update.Quantity,
		StockStatus:   string(status),
	}
}
