package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"github.com/erp/bomsync/internal/infrastructure/logger"
	"github.com/erp/bomsync/internal/infrastructure/scheduler"
	"github.com/erp/bomsync/internal/interfaces/http/dto"
	"github.com/erp/bomsync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError converts domain, platform and scheduler errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	code, message := classifyError(err)
	if dto.GetHTTPStatus(code) >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	h.Error(c, code, message)
}

// platformErrorCodes is checked in order; the first match wins
var platformErrorCodes = []struct {
	err  error
	code string
}{
	{integration.ErrPlatformNotFound, dto.ErrCodePlatformNotFound},
	{integration.ErrPlatformRateLimited, dto.ErrCodePlatformRateLimited},
	{integration.ErrPlatformUnavailable, dto.ErrCodePlatformUnavailable},
	{integration.ErrPlatformAuthFailed, dto.ErrCodePlatformAuthFailed},
	{integration.ErrPlatformInvalidResponse, dto.ErrCodePlatformInvalidPayload},
	{integration.ErrPlatformRequestFailed, dto.ErrCodePlatformRequestFailed},
	{integration.ErrPlatformNotConfigured, dto.ErrCodePlatformNotConfigured},
}

func classifyError(err error) (code, message string) {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
	}
	for _, p := range platformErrorCodes {
		if errors.Is(err, p.err) {
			return p.code, err.Error()
		}
	}
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		return dto.ErrCodeNotFound, err.Error()
	case errors.Is(err, scheduler.ErrJobQueueFull):
		return dto.ErrCodeJobQueueFull, err.Error()
	case errors.Is(err, scheduler.ErrSchedulerNotRunning):
		return dto.ErrCodeServiceUnhealthy, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return dto.ErrCodeTimeout, "The operation timed out"
	}
	return dto.ErrCodeInternal, "An unexpected error occurred"
}

// tenantID returns the tenant resolved by the tenant middleware
func tenantID(c *gin.Context) uuid.UUID {
	return middleware.GetTenantID(c)
}

// uuidParam parses a UUID path parameter
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
