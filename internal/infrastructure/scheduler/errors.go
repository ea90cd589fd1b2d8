package scheduler

import "errors"

// Submission and lookup failures surfaced to callers of the scheduler
var (
	ErrNilTenant           = errors.New("scheduler: bulk sync needs a tenant")
	ErrSchedulerNotRunning = errors.New("scheduler: not started")
	ErrJobQueueFull        = errors.New("scheduler: queue at capacity")
	ErrJobNotFound         = errors.New("scheduler: no such job")
)

// ErrInvalidConfig wraps every configuration check failure
var ErrInvalidConfig = errors.New("scheduler: invalid config")
