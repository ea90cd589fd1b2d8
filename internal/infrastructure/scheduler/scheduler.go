package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appbom "github.com/erp/bomsync/internal/application/bom"
	"github.com/erp/bomsync/internal/domain/bom"
)

// BulkSyncer runs a bulk sync for one tenant
type BulkSyncer interface {
	SyncAll(ctx context.Context, tenantID uuid.UUID, trigger bom.SyncTrigger) (*appbom.BulkSyncSummary, error)
}

// Config holds scheduler configuration
type Config struct {
	// WorkerCount is the number of jobs that may run at once
	WorkerCount int
	// QueueSize bounds the number of pending jobs
	QueueSize int
	// JobTimeout bounds a single run
	JobTimeout time.Duration
	// RetryAttempts is the number of extra runs a failed job gets
	RetryAttempts int
	// RetryDelay is the wait before a failed job is queued again
	RetryDelay time.Duration
	// HistorySize is how many finished jobs are kept for inspection
	HistorySize int
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		WorkerCount:   1,
		QueueSize:     100,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 1,
		RetryDelay:    time.Minute,
		HistorySize:   100,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker count must be at least 1", ErrInvalidConfig)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue size must be at least 1", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry attempts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Scheduler runs bulk sync jobs on a fixed worker pool. At most one job per
// tenant is pending or running at a time.
type Scheduler struct {
	config Config
	syncer BulkSyncer
	logger *zap.Logger

	queue  chan *BulkSyncJob
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	jobs     map[uuid.UUID]*BulkSyncJob
	active   map[uuid.UUID]uuid.UUID // tenant -> job
	finished []uuid.UUID
}

// NewScheduler creates a scheduler; call Start before submitting jobs
func NewScheduler(config Config, syncer BulkSyncer, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		syncer: syncer,
		logger: logger,
		queue:  make(chan *BulkSyncJob, config.QueueSize),
		jobs:   make(map[uuid.UUID]*BulkSyncJob),
		active: make(map[uuid.UUID]uuid.UUID),
	}, nil
}

// Start launches the workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Bulk sync scheduler started",
		zap.Int("workers", s.config.WorkerCount),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Bulk sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Bulk sync scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a bulk sync for tenantID. When the tenant already has a
// pending or running job, that job is returned instead.
func (s *Scheduler) Submit(tenantID uuid.UUID, trigger bom.SyncTrigger) (BulkSyncJob, error) {
	if tenantID == uuid.Nil {
		return BulkSyncJob{}, ErrNilTenant
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return BulkSyncJob{}, ErrSchedulerNotRunning
	}
	if id, ok := s.active[tenantID]; ok {
		return *s.jobs[id], nil
	}

	job := NewBulkSyncJob(tenantID, trigger, s.config.RetryAttempts)
	select {
	case s.queue <- job:
	default:
		return BulkSyncJob{}, ErrJobQueueFull
	}
	s.jobs[job.ID] = job
	s.active[tenantID] = job.ID

	s.logger.Debug("Bulk sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("trigger", string(trigger)),
	)
	return *job, nil
}

// Job returns a snapshot of the job with the given id
func (s *Scheduler) Job(id uuid.UUID) (BulkSyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return BulkSyncJob{}, ErrJobNotFound
	}
	return *job, nil
}

// Jobs returns snapshots of all known jobs, newest first
func (s *Scheduler) Jobs() []BulkSyncJob {
	s.mu.Lock()
	out := make([]BulkSyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.process(ctx, job, workerID)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *BulkSyncJob, workerID int) {
	s.mu.Lock()
	job.Start()
	tenantID, trigger := job.TenantID, job.Trigger
	s.mu.Unlock()

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
	)
	log.Info("Processing bulk sync job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	summary, err := s.runSafely(jobCtx, tenantID, trigger)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		job.Complete(summary)
		s.finish(job)
		log.Info("Bulk sync job completed",
			zap.Int("total", summary.Total),
			zap.Int("synced", summary.Synced),
			zap.Int("skipped", summary.Skipped),
			zap.Int("failed", summary.Failed),
		)
		return
	}

	job.Fail(err, summary)
	log.Error("Bulk sync job failed", zap.Error(err))

	if ctx.Err() != nil || !job.ShouldRetry() {
		s.finish(job)
		return
	}
	job.ScheduleRetry()
	log.Info("Bulk sync job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
	)
	s.wg.Add(1)
	go s.requeueAfter(ctx, job, s.config.RetryDelay)
}

func (s *Scheduler) runSafely(ctx context.Context, tenantID uuid.UUID, trigger bom.SyncTrigger) (summary *appbom.BulkSyncSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bulk sync panicked: %v", r)
		}
	}()
	return s.syncer.SyncAll(ctx, tenantID, trigger)
}

func (s *Scheduler) requeueAfter(ctx context.Context, job *BulkSyncJob, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.mu.Lock()
		job.Fail(ctx.Err(), job.Summary)
		s.finish(job)
		s.mu.Unlock()
		return
	case <-timer.C:
	}

	select {
	case s.queue <- job:
	default:
		s.mu.Lock()
		job.Fail(ErrJobQueueFull, job.Summary)
		s.finish(job)
		s.mu.Unlock()
		s.logger.Warn("Failed to re-queue bulk sync job for retry",
			zap.String("job_id", job.ID.String()),
		)
	}
}

// finish releases the tenant slot and trims history. Caller holds s.mu.
func (s *Scheduler) finish(job *BulkSyncJob) {
	if s.active[job.TenantID] == job.ID {
		delete(s.active, job.TenantID)
	}
	s.finished = append(s.finished, job.ID)
	for len(s.finished) > s.config.HistorySize && s.config.HistorySize > 0 {
		delete(s.jobs, s.finished[0])
		s.finished = s.finished[1:]
	}
}
