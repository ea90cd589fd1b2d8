package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/erp/bomsync/internal/interfaces/http/dto"
	"github.com/erp/bomsync/internal/interfaces/http/middleware"
)

// WebhookHandler turns platform callbacks into domain events
type WebhookHandler struct {
	BaseHandler
	publisher shared.EventPublisher
}

// NewWebhookHandler creates a WebhookHandler
func NewWebhookHandler(publisher shared.EventPublisher) *WebhookHandler {
	return &WebhookHandler{publisher: publisher}
}

// RegisterRoutes registers the webhook routes under rg
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/order-completed", h.OrderCompleted)
}

// OrderCompleted godoc
// @Summary      Report a completed order
// @Description  Publishes OrderCompleted; redeliveries of the same order_ref are dropped downstream
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        request  body  dto.OrderCompletedRequest  true  "Completed order"
// @Success      202 {object} dto.Response{data=dto.OrderAcceptedResponse}
// @Failure      400 {object} dto.Response
// @Router       /webhooks/order-completed [post]
func (h *WebhookHandler) OrderCompleted(c *gin.Context) {
	var req dto.OrderCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleBindError(c, err)
		return
	}

	event := bom.NewOrderCompletedEvent(tenantID(c), req.OrderRef, req.ToLineItems())
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.OrderAcceptedResponse{
		EventID:  event.EventID(),
		OrderRef: event.OrderRef,
	})
}
