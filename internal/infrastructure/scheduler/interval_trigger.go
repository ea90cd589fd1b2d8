package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/bomsync/internal/domain/bom"
)

// TenantProvider lists the tenants that own at least one BOM
type TenantProvider interface {
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// JobSubmitter accepts bulk sync jobs
type JobSubmitter interface {
	Submit(tenantID uuid.UUID, trigger bom.SyncTrigger) (BulkSyncJob, error)
}

// IntervalTrigger submits a scheduled bulk sync for every tenant on a fixed interval
type IntervalTrigger struct {
	interval  time.Duration
	submitter JobSubmitter
	tenants   TenantProvider
	logger    *zap.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewIntervalTrigger creates a trigger firing every interval
func NewIntervalTrigger(interval time.Duration, submitter JobSubmitter, tenants TenantProvider, logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		interval:  interval,
		submitter: submitter,
		tenants:   tenants,
		logger:    logger,
	}
}

// Start begins the ticker loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return ErrInvalidConfig
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	t.running = true

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Bulk sync trigger started", zap.Duration("interval", t.interval))
	return nil
}

// Stop ends the ticker loop
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Bulk sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun returns when the trigger last fired
func (t *IntervalTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := t.TriggerNow(ctx); err != nil {
				t.logger.Error("Failed to trigger scheduled bulk sync", zap.Error(err))
			}
		}
	}
}

// TriggerNow submits one scheduled job per tenant immediately and returns the
// number of jobs accepted. A tenant whose submission fails is logged and
// skipped.
func (t *IntervalTrigger) TriggerNow(ctx context.Context) (int, error) {
	tenantIDs, err := t.tenants.ListTenantIDs(ctx)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	t.logger.Info("Scheduling bulk sync for tenants", zap.Int("tenant_count", len(tenantIDs)))

	submitted := 0
	for _, tenantID := range tenantIDs {
		if _, err := t.submitter.Submit(tenantID, bom.TriggerScheduled); err != nil {
			t.logger.Error("Failed to schedule bulk sync for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}
	return submitted, nil
}
