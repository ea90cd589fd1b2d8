package bom

import "github.com/erp/bomsync/internal/domain/shared"

var (
	ErrNoUsableComponents  = shared.NewDomainError("NO_USABLE_COMPONENTS", "no BOM or no usable components")
	ErrVariableParentGuard = shared.NewDomainError("VARIABLE_PARENT_GUARD", "refusing product-level stock write on a product with variants")
	ErrSyncInProgress      = shared.NewDomainError("SYNC_IN_PROGRESS", "another sync holds the lock for this composite")
	ErrLockNotAcquired     = shared.NewDomainError("LOCK_NOT_ACQUIRED", "sync lock is held by another process")
	ErrInvalidComponent    = shared.NewDomainError("INVALID_COMPONENT", "BOM item must reference exactly one component")
	ErrInvalidProduct      = shared.NewDomainError("INVALID_PRODUCT", "product ID cannot be empty")
	ErrInvalidVariant      = shared.NewDomainError("INVALID_VARIANT", "variant ID cannot be negative")
	ErrInvalidExternalID   = shared.NewDomainError("INVALID_EXTERNAL_ID", "external ID must be positive")
)
