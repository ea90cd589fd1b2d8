package bom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/erp/bomsync/internal/domain/shared"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/erp/bomsync/internal/application/bom"

const (
	// DefaultLockTTL bounds how long a crashed sync can hold a target
	DefaultLockTTL = 2 * time.Minute
	// DefaultLockWait is how long a sync waits for a concurrent one to finish
	DefaultLockWait = 10 * time.Second
)

// Syncer syncs a single composite
type Syncer interface {
	Sync(ctx context.Context, req SyncRequest) *SyncResult
}

// SyncService keeps the platform stock of composite products equal to their
// effective stock. Syncs of the same target are serialised by a lock.
type SyncService struct {
	calculator *StockCalculator
	products   bom.ProductRepository
	boms       bom.BOMRepository
	audits     bom.StockAuditRepository
	source     integration.StockSource
	locker     bom.SyncLocker
	recorder   SyncRecorder
	tracer     trace.Tracer
	logger     *zap.Logger
	lockTTL    time.Duration
	lockWait   time.Duration
}

// NewSyncService creates a new SyncService
func NewSyncService(
	calculator *StockCalculator,
	products bom.ProductRepository,
	boms bom.BOMRepository,
	audits bom.StockAuditRepository,
	source integration.StockSource,
	locker bom.SyncLocker,
	logger *zap.Logger,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		calculator: calculator,
		products:   products,
		boms:       boms,
		audits:     audits,
		source:     source,
		locker:     locker,
		recorder:   noopRecorder{},
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		lockTTL:    DefaultLockTTL,
		lockWait:   DefaultLockWait,
	}
}

// SetRecorder sets the telemetry recorder
func (s *SyncService) SetRecorder(recorder SyncRecorder) {
	if recorder != nil {
		s.recorder = recorder
	}
}

// SetLockTiming overrides the lock TTL and wait. A zero wait fails fast.
func (s *SyncService) SetLockTiming(ttl, wait time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
	if wait >= 0 {
		s.lockWait = wait
	}
}

// Sync runs resolve, calculate, compare, write, audit and cache
// reconciliation for one target, in that order, under the target's lock.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) *SyncResult {
	start := time.Now()
	target := req.Target
	if req.Trigger == "" {
		req.Trigger = bom.TriggerManual
	}

	ctx, span := s.tracer.Start(ctx, "bom.Sync", trace.WithAttributes(
		attribute.String("tenant.id", target.TenantID.String()),
		attribute.String("product.id", target.ProductID.String()),
		attribute.Int64("variant.id", target.VariantID),
		attribute.String("sync.trigger", string(req.Trigger)),
	))
	defer span.End()

	result := s.syncLocked(ctx, req)

	span.SetAttributes(attribute.String("sync.outcome", string(result.Outcome)))
	if result.Outcome == OutcomeFailed {
		span.SetStatus(codes.Error, result.Error)
	}
	s.recorder.RecordSync(ctx, result.Outcome, time.Since(start))
	return result
}

func (s *SyncService) syncLocked(ctx context.Context, req SyncRequest) *SyncResult {
	result := &SyncResult{Target: req.Target}

	release, err := s.acquire(ctx, req.Target)
	if err != nil {
		if errors.Is(err, bom.ErrLockNotAcquired) {
			s.logger.Info("sync skipped, target locked",
				zap.String("product_id", req.Target.ProductID.String()),
				zap.Int64("variant_id", req.Target.VariantID),
			)
			result.fail(bom.ErrSyncInProgress)
			result.Outcome = OutcomeLocked
			return result
		}
		return result.fail(fmt.Errorf("acquire sync lock: %w", err))
	}
	defer release()

	return s.sync(ctx, req, result)
}

func (s *SyncService) acquire(ctx context.Context, target bom.SyncTarget) (func(), error) {
	key := target.LockKey()
	if s.lockWait == 0 {
		release, acquired, err := s.locker.TryAcquire(ctx, key, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, bom.ErrLockNotAcquired
		}
		return release, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	release, err := s.locker.Acquire(waitCtx, key, s.lockTTL)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, bom.ErrLockNotAcquired
		}
		return nil, err
	}
	return release, nil
}

func (s *SyncService) sync(ctx context.Context, req SyncRequest, result *SyncResult) *SyncResult {
	target := req.Target
	log := s.logger.With(
		zap.String("tenant_id", target.TenantID.String()),
		zap.String("product_id", target.ProductID.String()),
		zap.Int64("variant_id", target.VariantID),
	)

	calc, err := s.calculator.Calculate(ctx, target)
	if err != nil {
		return result.fail(err)
	}
	if calc == nil {
		return result.fail(bom.ErrNoUsableComponents)
	}
	result.DeactivatedItems = len(calc.DeactivatedItems)
	result.PreviousStock = calc.CurrentExternalStock
	newStock := calc.EffectiveStock
	result.NewStock = &newStock

	if !calc.NeedsSync {
		result.Outcome = OutcomeInSync
		result.Success = true
		result.LocalDBUpdated = s.reconcileComposite(ctx, target, calc.composite, calc.CurrentExternalStock, calc.CurrentExternalStatus, log)
		return result
	}

	if !target.IsVariantScoped() && calc.composite.HasVariants {
		log.Warn("refusing product-level stock write on variable product",
			zap.Int64("effective_stock", newStock),
		)
		return result.fail(bom.ErrVariableParentGuard)
	}

	if err := s.write(ctx, target, calc.composite, newStock); err != nil {
		if integration.IsNotFound(err) {
			n, derr := s.boms.DeactivateItemsForTarget(ctx, target, bom.ReasonCompositeDeleted)
			if derr != nil {
				log.Error("failed to deactivate BOM of vanished composite", zap.Error(derr))
			} else {
				result.DeactivatedItems += int(n)
				s.recorder.RecordDeactivation(ctx, bom.ReasonCompositeDeleted, int(n))
				log.Warn("composite no longer exists upstream, BOM deactivated", zap.Int64("items", n))
			}
		}
		return result.fail(fmt.Errorf("write composite stock: %w", err))
	}
	s.recorder.RecordStockWrite(ctx, target)

	entry := bom.NewStockAuditEntry(target, calc.CurrentExternalStock, newStock, auditContext(req, calc))
	if err := s.audits.Append(ctx, entry); err != nil {
		log.Error("stock written but audit append failed", zap.Error(err))
		result.AuditError = err.Error()
	}

	result.Outcome = OutcomeSynced
	result.Success = true
	result.LocalDBUpdated = s.reconcileComposite(ctx, target, calc.composite, &newStock, integration.StockStatusFor(newStock), log)

	log.Info("composite stock synced",
		zap.Int64p("previous_stock", calc.CurrentExternalStock),
		zap.Int64("new_stock", newStock),
		zap.String("trigger", string(req.Trigger)),
	)
	return result
}

func (s *SyncService) write(ctx context.Context, target bom.SyncTarget, composite *bom.Product, quantity int64) error {
	update := integration.NewManagedStockUpdate(quantity)
	if target.IsVariantScoped() {
		return s.source.UpdateVariantStock(ctx, target.TenantID, composite.ExternalID, target.VariantID, update)
	}
	return s.source.UpdateProductStock(ctx, target.TenantID, composite.ExternalID, update)
}

// reconcileComposite stores the platform stock of the composite locally. The
// reported status is kept as is; it is derived from the quantity only when the
// platform gave none.
func (s *SyncService) reconcileComposite(ctx context.Context, target bom.SyncTarget, composite *bom.Product, quantity *int64, status integration.StockStatus, log *zap.Logger) bool {
	if !status.IsValid() {
		status = integration.StockStatusOutOfStock
		if quantity != nil {
			status = integration.StockStatusFor(*quantity)
		}
	}

	if !target.IsVariantScoped() {
		if err := s.products.UpdateProductStockCache(ctx, target.TenantID, composite.ID, quantity, status); err != nil {
			log.Warn("composite stock cache reconciliation failed", zap.Error(err))
			return false
		}
		return true
	}

	variant, err := s.products.FindVariantByExternalID(ctx, target.TenantID, composite.ID, target.VariantID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			log.Warn("composite variant lookup failed", zap.Error(err))
		}
		return false
	}
	if err := s.products.UpdateVariantStockCache(ctx, target.TenantID, variant.ID, quantity, status); err != nil {
		log.Warn("composite variant stock cache reconciliation failed", zap.Error(err))
		return false
	}
	return true
}

func auditContext(req SyncRequest, calc *EffectiveStockResult) bom.AuditContext {
	ctx := bom.AuditContext{
		Trigger:    req.Trigger,
		OrderRef:   req.OrderRef,
		Components: calc.Components,
	}
	if calc.Bottleneck != nil {
		id := calc.Bottleneck.ItemID
		ctx.BottleneckItemID = &id
	}
	return ctx
}

var _ Syncer = (*SyncService)(nil)
