package bom

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/bomsync/internal/domain/bom"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockSyncer is a mock implementation of Syncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, req SyncRequest) *SyncResult {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(SyncRequest) *SyncResult); ok {
		return fn(req)
	}
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*SyncResult)
}

// MockBOMRepository is a mock implementation of bom.BOMRepository
type MockBOMRepository struct {
	mock.Mock
}

func (m *MockBOMRepository) FindForResolution(ctx context.Context, tenantID, productID uuid.UUID, variantID int64) ([]bom.BillOfMaterials, error) {
	args := m.Called(ctx, tenantID, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bom.BillOfMaterials), args.Error(1)
}

func (m *MockBOMRepository) ListSyncTargets(ctx context.Context, tenantID uuid.UUID) ([]bom.SyncTarget, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bom.SyncTarget), args.Error(1)
}

func (m *MockBOMRepository) FindTargetsByComponent(ctx context.Context, tenantID uuid.UUID, lookup bom.ComponentLookup) ([]bom.SyncTarget, error) {
	args := m.Called(ctx, tenantID, lookup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bom.SyncTarget), args.Error(1)
}

func (m *MockBOMRepository) DeactivateItem(ctx context.Context, itemID uuid.UUID, reason bom.DeactivationReason) error {
	args := m.Called(ctx, itemID, reason)
	return args.Error(0)
}

func (m *MockBOMRepository) DeactivateItemsForTarget(ctx context.Context, target bom.SyncTarget, reason bom.DeactivationReason) (int64, error) {
	args := m.Called(ctx, target, reason)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBOMRepository) Save(ctx context.Context, b *bom.BillOfMaterials) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBOMRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func makeTargets(tenantID uuid.UUID, n int) []bom.SyncTarget {
	targets := make([]bom.SyncTarget, n)
	for i := range targets {
		targets[i] = bom.SyncTarget{TenantID: tenantID, ProductID: uuid.New()}
	}
	return targets
}

func TestBulkSyncService_SyncAll(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("classifies outcomes", func(t *testing.T) {
		repo := new(MockBOMRepository)
		syncer := new(MockSyncer)
		targets := makeTargets(tenantID, 4)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(targets, nil)

		outcomes := map[uuid.UUID]SyncOutcome{
			targets[0].ProductID: OutcomeSynced,
			targets[1].ProductID: OutcomeInSync,
			targets[2].ProductID: OutcomeLocked,
			targets[3].ProductID: OutcomeFailed,
		}
		syncer.On("Sync", mock.Anything, mock.Anything).Return(func(req SyncRequest) *SyncResult {
			return &SyncResult{Target: req.Target, Outcome: outcomes[req.Target.ProductID]}
		})

		svc := NewBulkSyncService(repo, syncer, zaptest.NewLogger(t))
		summary, err := svc.SyncAll(ctx, tenantID, bom.TriggerScheduled)
		require.NoError(t, err)

		assert.Equal(t, 4, summary.Total)
		assert.Equal(t, 1, summary.Synced)
		assert.Equal(t, 2, summary.Skipped)
		assert.Equal(t, 1, summary.Failed)
		syncer.AssertNumberOfCalls(t, "Sync", 4)
	})

	t.Run("one failure does not stop the run", func(t *testing.T) {
		repo := new(MockBOMRepository)
		syncer := new(MockSyncer)
		targets := makeTargets(tenantID, 5)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(targets, nil)

		failing := targets[2].ProductID
		syncer.On("Sync", mock.Anything, mock.Anything).Return(func(req SyncRequest) *SyncResult {
			r := &SyncResult{Target: req.Target}
			if req.Target.ProductID == failing {
				return r.fail(bom.ErrVariableParentGuard)
			}
			r.Outcome = OutcomeSynced
			return r
		})

		svc := NewBulkSyncService(repo, syncer, zaptest.NewLogger(t))
		summary, err := svc.SyncAll(ctx, tenantID, bom.TriggerScheduled)
		require.NoError(t, err)

		assert.Equal(t, 5, summary.Total)
		assert.Equal(t, 4, summary.Synced)
		assert.Equal(t, 1, summary.Failed)
		syncer.AssertNumberOfCalls(t, "Sync", 5)
	})

	t.Run("panic is counted as failed", func(t *testing.T) {
		repo := new(MockBOMRepository)
		syncer := new(MockSyncer)
		targets := makeTargets(tenantID, 3)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(targets, nil)

		syncer.On("Sync", mock.Anything, mock.Anything).Return(func(req SyncRequest) *SyncResult {
			if req.Target.ProductID == targets[0].ProductID {
				panic("nil map write")
			}
			return &SyncResult{Target: req.Target, Outcome: OutcomeInSync}
		})

		svc := NewBulkSyncService(repo, syncer, zaptest.NewLogger(t))
		summary, err := svc.SyncAll(ctx, tenantID, bom.TriggerScheduled)
		require.NoError(t, err)

		assert.Equal(t, 1, summary.Failed)
		assert.Equal(t, 2, summary.Skipped)
	})

	t.Run("passes the trigger through", func(t *testing.T) {
		repo := new(MockBOMRepository)
		syncer := new(MockSyncer)
		targets := makeTargets(tenantID, 1)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(targets, nil)
		syncer.On("Sync", mock.Anything, SyncRequest{Target: targets[0], Trigger: bom.TriggerManual}).
			Return(&SyncResult{Outcome: OutcomeSynced})

		svc := NewBulkSyncService(repo, syncer, nil)
		_, err := svc.SyncAll(ctx, tenantID, bom.TriggerManual)
		require.NoError(t, err)
		syncer.AssertExpectations(t)
	})

	t.Run("empty account", func(t *testing.T) {
		repo := new(MockBOMRepository)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return([]bom.SyncTarget{}, nil)

		svc := NewBulkSyncService(repo, new(MockSyncer), nil)
		summary, err := svc.SyncAll(ctx, tenantID, bom.TriggerScheduled)
		require.NoError(t, err)
		assert.Equal(t, BulkSyncSummary{TenantID: tenantID}, *summary)
	})

	t.Run("listing failure is returned", func(t *testing.T) {
		repo := new(MockBOMRepository)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(nil, errors.New("db down"))

		svc := NewBulkSyncService(repo, new(MockSyncer), nil)
		_, err := svc.SyncAll(ctx, tenantID, bom.TriggerScheduled)
		assert.Error(t, err)
	})

	t.Run("cancelled context stops between targets", func(t *testing.T) {
		repo := new(MockBOMRepository)
		syncer := new(MockSyncer)
		targets := makeTargets(tenantID, 3)
		repo.On("ListSyncTargets", mock.Anything, tenantID).Return(targets, nil)

		cctx, cancel := context.WithCancel(ctx)
		syncer.On("Sync", mock.Anything, mock.Anything).Return(func(req SyncRequest) *SyncResult {
			cancel()
			return &SyncResult{Outcome: OutcomeSynced}
		})

		svc := NewBulkSyncService(repo, syncer, nil)
		summary, err := svc.SyncAll(cctx, tenantID, bom.TriggerScheduled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, summary.Synced)
		syncer.AssertNumberOfCalls(t, "Sync", 1)
	})
}

func TestBulkSyncService_WithSyncService(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	box, _, _ := f.giftBox()

	guarded := f.product(400, "Variable Box", nil)
	guarded.HasVariants = true
	f.platform.setProduct(400, qty(1))
	tag := f.internal("Tag", "3")
	f.bom(guarded, 0, line{component: bom.InternalItemComponent{Item: tag}, quantity: "1"})

	inSync := f.product(500, "Card Pack", nil)
	f.platform.setProduct(500, qty(3))
	f.bom(inSync, 0, line{component: bom.InternalItemComponent{Item: tag}, quantity: "1"})

	svc := NewBulkSyncService(f.store, f.service, nil)
	summary, err := svc.SyncAll(ctx, f.tenantID, bom.TriggerScheduled)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)

	cached := f.store.cachedProductStock(box.ID)
	require.NotNil(t, cached)
	assert.Equal(t, int64(15), *cached)
}
