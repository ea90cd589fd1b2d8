package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeTimeout          = "ERR_TIMEOUT"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeValidation       = "ERR_VALIDATION"
	ErrCodeRequestTooLarge  = "ERR_REQUEST_TOO_LARGE"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeConflict         = "ERR_CONFLICT"
	ErrCodeServiceUnhealthy = "ERR_SERVICE_UNHEALTHY"
)

// Sync error codes
const (
	// ErrCodeNoUsableComponents means the target has no BOM or none of its lines can be used
	ErrCodeNoUsableComponents = "ERR_NO_USABLE_COMPONENTS"
	// ErrCodeVariableParentGuard means a product-level write was refused on a variable product
	ErrCodeVariableParentGuard = "ERR_VARIABLE_PARENT_GUARD"
	// ErrCodeSyncInProgress means another sync of the same target holds its lock
	ErrCodeSyncInProgress = "ERR_SYNC_IN_PROGRESS"
	// ErrCodeJobQueueFull means the scheduler cannot accept another job
	ErrCodeJobQueueFull = "ERR_JOB_QUEUE_FULL"
)

// Platform error codes
const (
	ErrCodePlatformNotFound       = "ERR_PLATFORM_NOT_FOUND"
	ErrCodePlatformUnavailable    = "ERR_PLATFORM_UNAVAILABLE"
	ErrCodePlatformRateLimited    = "ERR_PLATFORM_RATE_LIMITED"
	ErrCodePlatformAuthFailed     = "ERR_PLATFORM_AUTH_FAILED"
	ErrCodePlatformRequestFailed  = "ERR_PLATFORM_REQUEST_FAILED"
	ErrCodePlatformNotConfigured  = "ERR_PLATFORM_NOT_CONFIGURED"
	ErrCodePlatformInvalidPayload = "ERR_PLATFORM_INVALID_RESPONSE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeTimeout:          http.StatusGatewayTimeout,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeServiceUnhealthy: http.StatusServiceUnavailable,

	ErrCodeNoUsableComponents:  http.StatusNotFound,
	ErrCodeVariableParentGuard: http.StatusUnprocessableEntity,
	ErrCodeSyncInProgress:      http.StatusConflict,
	ErrCodeJobQueueFull:        http.StatusServiceUnavailable,

	// upstream failures are the platform's, not the caller's
	ErrCodePlatformNotFound:       http.StatusNotFound,
	ErrCodePlatformUnavailable:    http.StatusServiceUnavailable,
	ErrCodePlatformRateLimited:    http.StatusTooManyRequests,
	ErrCodePlatformAuthFailed:     http.StatusBadGateway,
	ErrCodePlatformRequestFailed:  http.StatusBadGateway,
	ErrCodePlatformNotConfigured:  http.StatusServiceUnavailable,
	ErrCodePlatformInvalidPayload: http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"INVALID_INPUT":         ErrCodeValidation,
	"INVALID_STATE":         ErrCodeConflict,
	"CONFLICT":              ErrCodeConflict,
	"NO_USABLE_COMPONENTS":  ErrCodeNoUsableComponents,
	"VARIABLE_PARENT_GUARD": ErrCodeVariableParentGuard,
	"SYNC_IN_PROGRESS":      ErrCodeSyncInProgress,
	"LOCK_NOT_ACQUIRED":     ErrCodeSyncInProgress,
	"INVALID_COMPONENT":     ErrCodeValidation,
	"INVALID_PRODUCT":       ErrCodeValidation,
	"INVALID_VARIANT":       ErrCodeValidation,
	"INVALID_EXTERNAL_ID":   ErrCodeValidation,
}

// NormalizeErrorCode converts a domain error code to an API error code.
// Unknown codes map to ERR_INTERNAL.
func NormalizeErrorCode(code string) string {
	if mapped, ok := DomainErrorCodeMapping[code]; ok {
		return mapped
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeInternal
}
