package bom

import (
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/google/uuid"
)

const EventTypeOrderCompleted = "OrderCompleted"

// OrderLineItem is one sold line of a completed order
type OrderLineItem struct {
	ExternalProductID int64  `json:"external_product_id"`
	VariantID         *int64 `json:"variant_id,omitempty"`
	QuantitySold      int64  `json:"quantity_sold"`
}

// OrderCompletedEvent is raised when the platform reports a completed order.
// The order itself is owned elsewhere; the aggregate ID is derived from the
// order reference.
type OrderCompletedEvent struct {
	shared.BaseDomainEvent
	AccountID uuid.UUID       `json:"account_id"`
	OrderRef  string          `json:"order_ref"`
	LineItems []OrderLineItem `json:"line_items"`
}

// NewOrderCompletedEvent creates a new OrderCompletedEvent
func NewOrderCompletedEvent(accountID uuid.UUID, orderRef string, items []OrderLineItem) *OrderCompletedEvent {
	aggID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(accountID.String()+"/"+orderRef))
	return &OrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCompleted, aggID, accountID),
		AccountID:       accountID,
		OrderRef:        orderRef,
		LineItems:       items,
	}
}

// IdempotencyKey identifies the order across redeliveries
func (e *OrderCompletedEvent) IdempotencyKey() string {
	if e.OrderRef == "" {
		return ""
	}
	return "order-completed:" + e.AccountID.String() + ":" + e.OrderRef
}

var _ shared.IdempotencyKeyed = (*OrderCompletedEvent)(nil)
