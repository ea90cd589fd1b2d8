package scheduler

import (
	"time"

	"github.com/google/uuid"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/domain/bom"
)

// JobStatus is the lifecycle state of a BulkSyncJob
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// BulkSyncJob is one bulk sync run for a tenant
type BulkSyncJob struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Trigger     bom.SyncTrigger
	Status      JobStatus
	Error       string
	Summary     *appbom.BulkSyncSummary
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
}

// NewBulkSyncJob creates a pending job
func NewBulkSyncJob(tenantID uuid.UUID, trigger bom.SyncTrigger, maxRetries int) *BulkSyncJob {
	return &BulkSyncJob{
		ID:         uuid.New(),
		TenantID:   tenantID,
		Trigger:    trigger,
		Status:     JobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *BulkSyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.CompletedAt = nil
	j.Error = ""
}

// Complete marks the job as completed with the run's counts
func (j *BulkSyncJob) Complete(summary *appbom.BulkSyncSummary) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Summary = summary
}

// Fail marks the job as failed. summary may hold partial counts.
func (j *BulkSyncJob) Fail(err error, summary *appbom.BulkSyncSummary) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Summary = summary
	if err != nil {
		j.Error = err.Error()
	}
}

// ShouldRetry reports whether a failed job has retries left
func (j *BulkSyncJob) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry returns the job to pending for another attempt
func (j *BulkSyncJob) ScheduleRetry() {
	j.RetryCount++
	j.Status = JobStatusPending
}

// IsTerminal reports whether the job will not run again
func (j *BulkSyncJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || (j.Status == JobStatusFailed && !j.ShouldRetry())
}
