package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/infrastructure/scheduler"
	"github.com/erp/bomsync/internal/interfaces/http/dto"
	"github.com/erp/bomsync/internal/interfaces/http/middleware"
)

// StockCalculator computes effective stock in live and local modes
type StockCalculator interface {
	Calculate(ctx context.Context, target bom.SyncTarget) (*appbom.EffectiveStockResult, error)
	CalculateLocal(ctx context.Context, target bom.SyncTarget) (*appbom.EffectiveStockResult, error)
}

// BulkSyncer syncs every composite of a tenant
type BulkSyncer interface {
	SyncAll(ctx context.Context, tenantID uuid.UUID, trigger bom.SyncTrigger) (*appbom.BulkSyncSummary, error)
}

// JobScheduler queues bulk syncs in the background
type JobScheduler interface {
	Submit(tenantID uuid.UUID, trigger bom.SyncTrigger) (scheduler.BulkSyncJob, error)
	Job(id uuid.UUID) (scheduler.BulkSyncJob, error)
}

// BOMHandler serves composite stock calculation and sync
type BOMHandler struct {
	BaseHandler
	calculator StockCalculator
	syncer     appbom.Syncer
	bulk       BulkSyncer
	audits     bom.StockAuditRepository
	jobs       JobScheduler
}

// NewBOMHandler creates a BOMHandler. jobs may be nil when background
// scheduling is off; the job routes then answer 503.
func NewBOMHandler(calculator StockCalculator, syncer appbom.Syncer, bulk BulkSyncer, audits bom.StockAuditRepository, jobs JobScheduler) *BOMHandler {
	return &BOMHandler{
		calculator: calculator,
		syncer:     syncer,
		bulk:       bulk,
		audits:     audits,
		jobs:       jobs,
	}
}

// RegisterRoutes registers the BOM routes under rg
func (h *BOMHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/bom")
	g.GET("/products/:id/stock", h.GetLocalStock)
	g.GET("/products/:id/effective-stock", h.GetEffectiveStock)
	g.POST("/products/:id/sync", h.SyncProduct)
	g.GET("/products/:id/audit", h.ListAudit)
	g.POST("/sync-all", h.SyncAll)
	g.POST("/sync-jobs", h.SubmitSyncJob)
	g.GET("/sync-jobs/:id", h.GetSyncJob)
}

// GetLocalStock godoc
// @Summary      Effective stock from cached and local data
// @Description  Never calls the platform; meant for display
// @Tags         bom
// @Produce      json
// @Param        id          path   string  true   "Composite product ID"
// @Param        variant_id  query  int     false  "Variant external ID, 0 for the default BOM"
// @Success      200 {object} dto.Response{data=dto.EffectiveStockResponse}
// @Failure      404 {object} dto.Response
// @Router       /bom/products/{id}/stock [get]
func (h *BOMHandler) GetLocalStock(c *gin.Context) {
	h.calculate(c, h.calculator.CalculateLocal)
}

// GetEffectiveStock godoc
// @Summary      Effective stock from live platform data
// @Description  Runs the full calculation without writing to the platform
// @Tags         bom
// @Produce      json
// @Param        id          path   string  true   "Composite product ID"
// @Param        variant_id  query  int     false  "Variant external ID, 0 for the default BOM"
// @Success      200 {object} dto.Response{data=dto.EffectiveStockResponse}
// @Failure      404 {object} dto.Response
// @Router       /bom/products/{id}/effective-stock [get]
func (h *BOMHandler) GetEffectiveStock(c *gin.Context) {
	h.calculate(c, h.calculator.Calculate)
}

func (h *BOMHandler) calculate(c *gin.Context, calc func(context.Context, bom.SyncTarget) (*appbom.EffectiveStockResult, error)) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}

	result, err := calc(c.Request.Context(), target)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result == nil {
		h.HandleError(c, bom.ErrNoUsableComponents)
		return
	}
	h.Success(c, dto.NewEffectiveStockResponse(result))
}

// SyncProduct godoc
// @Summary      Sync one composite now
// @Description  Recalculates and writes the platform stock when it differs
// @Tags         bom
// @Produce      json
// @Param        id          path   string  true   "Composite product ID"
// @Param        variant_id  query  int     false  "Variant external ID, 0 for the default BOM"
// @Success      200 {object} dto.Response{data=dto.SyncResultResponse}
// @Failure      409 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Router       /bom/products/{id}/sync [post]
func (h *BOMHandler) SyncProduct(c *gin.Context) {
	target, ok := h.bindTarget(c)
	if !ok {
		return
	}

	result := h.syncer.Sync(c.Request.Context(), appbom.SyncRequest{
		Target:  target,
		Trigger: bom.TriggerManual,
	})
	if !result.Success {
		h.HandleError(c, result.Err())
		return
	}
	h.Success(c, dto.NewSyncResultResponse(result))
}

// SyncAll godoc
// @Summary      Sync every composite of the tenant
// @Description  Runs in the request and returns the counts
// @Tags         bom
// @Produce      json
// @Success      200 {object} dto.Response{data=appbom.BulkSyncSummary}
// @Router       /bom/sync-all [post]
func (h *BOMHandler) SyncAll(c *gin.Context) {
	summary, err := h.bulk.SyncAll(c.Request.Context(), tenantID(c), bom.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListAudit godoc
// @Summary      Stock audit trail of a composite
// @Tags         bom
// @Produce      json
// @Param        id     path   string  true   "Composite product ID"
// @Param        limit  query  int     false  "Maximum entries (default 50, max 500)"
// @Success      200 {object} dto.Response{data=[]dto.AuditEntryResponse}
// @Router       /bom/products/{id}/audit [get]
func (h *BOMHandler) ListAudit(c *gin.Context) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	var query dto.AuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	if query.Limit == 0 {
		query.Limit = dto.DefaultAuditLimit
	}

	entries, err := h.audits.ListByProduct(c.Request.Context(), tenantID(c), productID, query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewAuditEntryResponses(entries))
}

// SubmitSyncJob godoc
// @Summary      Queue a background bulk sync
// @Description  Returns the tenant's pending or running job when there is one
// @Tags         bom
// @Produce      json
// @Success      202 {object} dto.Response{data=dto.SyncJobResponse}
// @Failure      503 {object} dto.Response
// @Router       /bom/sync-jobs [post]
func (h *BOMHandler) SubmitSyncJob(c *gin.Context) {
	if h.jobs == nil {
		h.HandleError(c, scheduler.ErrSchedulerNotRunning)
		return
	}
	job, err := h.jobs.Submit(tenantID(c), bom.TriggerManual)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.NewSyncJobResponse(job))
}

// GetSyncJob godoc
// @Summary      Background bulk sync job status
// @Tags         bom
// @Produce      json
// @Param        id  path  string  true  "Job ID"
// @Success      200 {object} dto.Response{data=dto.SyncJobResponse}
// @Failure      404 {object} dto.Response
// @Router       /bom/sync-jobs/{id} [get]
func (h *BOMHandler) GetSyncJob(c *gin.Context) {
	if h.jobs == nil {
		h.HandleError(c, scheduler.ErrSchedulerNotRunning)
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid job ID format")
		return
	}
	job, err := h.jobs.Job(id)
	// jobs of other tenants are reported as missing
	if err == nil && job.TenantID != tenantID(c) {
		err = scheduler.ErrJobNotFound
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewSyncJobResponse(job))
}

func (h *BOMHandler) bindTarget(c *gin.Context) (bom.SyncTarget, bool) {
	productID, ok := uuidParam(c, "id")
	if !ok {
		h.BadRequest(c, "Invalid product ID format")
		return bom.SyncTarget{}, false
	}
	var query dto.TargetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleBindError(c, err)
		return bom.SyncTarget{}, false
	}
	return bom.SyncTarget{
		TenantID:  tenantID(c),
		ProductID: productID,
		VariantID: query.VariantID,
	}, true
}
