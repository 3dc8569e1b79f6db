package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order/repository"
)

var (
	t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
	t2 = t0.Add(2 * time.Minute)
)

type mockSnapshotSource struct {
	ListOrdersFunc func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error)
}

func (m *mockSnapshotSource) ListOrders(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
	return m.ListOrdersFunc(ctx, skip, limit)
}

type fixedStatuses struct {
	set domain.StatusSet
}

func (f fixedStatuses) Statuses() domain.StatusSet { return f.set }

func defaultStatuses() fixedStatuses {
	return fixedStatuses{set: domain.NewStatusSet(domain.DefaultStatuses()...)}
}

func newTestSyncService(source SnapshotSource) (*SyncService, *repository.MemoryOrderRepository) {
	repo := repository.NewMemoryOrderRepository()
	return NewSyncService(repo, source, defaultStatuses(), 2, metrics.NewRegistry(), zap.NewNop()), repo
}

func singlePage(orders ...dto.OrderDTO) *mockSnapshotSource {
	return &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			if skip > 0 {
				return &dto.OrderListResponse{}, nil
			}
			return &dto.OrderListResponse{Count: len(orders), Orders: orders}, nil
		},
	}
}

func remoteOrder(id, status string, updated time.Time) dto.OrderDTO {
	return dto.OrderDTO{
		OrderID:         id,
		MerchantName:    "acme",
		CustomerContact: "9876543210",
		CurrentStatus:   status,
		CreatedAt:       dto.Time{Time: t0},
		UpdatedAt:       dto.Time{Time: updated},
	}
}

func event(id string, status domain.Status, ts time.Time) domain.StatusEvent {
	return domain.StatusEvent{OrderID: id, NewStatus: status, Timestamp: ts, UpdatedBy: "ops1"}
}

func TestApplyEvent_Idempotent(t *testing.T) {
	svc, repo := newTestSyncService(singlePage())
	ctx := context.Background()
	ev := event("A1", domain.StatusPickedUp, t1)

	_, first, err := svc.ApplyEvent(ctx, ev)
	require.NoError(t, err)
	once := repo.List()

	_, second, err := svc.ApplyEvent(ctx, ev)
	require.NoError(t, err)

	assert.Equal(t, domain.MergeInserted, first)
	assert.Equal(t, domain.MergeUnchanged, second)
	assert.Equal(t, once, repo.List())
}

func TestApplyEvent_UnknownOrderInsertsPlaceholder(t *testing.T) {
	svc, repo := newTestSyncService(singlePage())

	_, outcome, err := svc.ApplyEvent(context.Background(), event("NEW", domain.StatusInTransit, t1))

	require.NoError(t, err)
	assert.Equal(t, domain.MergeInserted, outcome)
	o, err := repo.FindByID("NEW")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, o.CurrentStatus)
	assert.Equal(t, t1, o.UpdatedAt)
	assert.Equal(t, domain.PlaceholderContact, o.CustomerContact)
}

func TestApplyEvent_KnownOrderOnlyStatusAndTimestampChange(t *testing.T) {
	svc, repo := newTestSyncService(singlePage(remoteOrder("A1", "created", t0)))
	_, err := svc.LoadSnapshot(context.Background())
	require.NoError(t, err)
	before, _ := repo.FindByID("A1")

	_, outcome, err := svc.ApplyEvent(context.Background(), event("A1", domain.StatusPickedUp, t1))

	require.NoError(t, err)
	assert.Equal(t, domain.MergeUpdated, outcome)
	after, _ := repo.FindByID("A1")
	expected := *before
	expected.CurrentStatus = domain.StatusPickedUp
	expected.UpdatedAt = t1
	assert.Equal(t, expected, *after)
}

func TestApplyEvent_DropsInvalidEvents(t *testing.T) {
	svc, repo := newTestSyncService(singlePage())

	tests := []struct {
		name string
		ev   domain.StatusEvent
	}{
		{"missing order id", domain.StatusEvent{NewStatus: domain.StatusCreated}},
		{"missing status", domain.StatusEvent{OrderID: "A1"}},
		{"unknown status", domain.StatusEvent{OrderID: "A1", NewStatus: "teleported"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ApplyEvent(context.Background(), tt.ev)

			_, ok := apperrors.IsProtocolError(err)
			assert.True(t, ok)
			assert.Equal(t, 0, repo.Len())
		})
	}
}

func TestApplyEvent_StaleEventIgnored(t *testing.T) {
	svc, repo := newTestSyncService(singlePage())
	ctx := context.Background()

	_, _, err := svc.ApplyEvent(ctx, event("A1", domain.StatusDelivered, t2))
	require.NoError(t, err)
	_, outcome, err := svc.ApplyEvent(ctx, event("A1", domain.StatusInTransit, t1))
	require.NoError(t, err)

	assert.Equal(t, domain.MergeStale, outcome)
	o, _ := repo.FindByID("A1")
	assert.Equal(t, domain.StatusDelivered, o.CurrentStatus)
	assert.Equal(t, t2, o.UpdatedAt)
}

func TestLoadSnapshot_Paginates(t *testing.T) {
	var skips []int
	source := &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			skips = append(skips, skip)
			assert.Equal(t, 2, limit)
			switch skip {
			case 0:
				return &dto.OrderListResponse{Orders: []dto.OrderDTO{remoteOrder("A1", "created", t0), remoteOrder("B2", "created", t0)}}, nil
			case 2:
				return &dto.OrderListResponse{Orders: []dto.OrderDTO{remoteOrder("C3", "delivered", t1)}}, nil
			default:
				t.Fatalf("unexpected page at skip %d", skip)
				return nil, nil
			}
		},
	}
	svc, repo := newTestSyncService(source)

	orders, err := svc.LoadSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, skips)
	assert.Len(t, orders, 3)
	assert.Equal(t, 3, repo.Len())
}

func TestLoadSnapshot_ReplacesMembership(t *testing.T) {
	svc, repo := newTestSyncService(singlePage(remoteOrder("A1", "created", t0)))
	ctx := context.Background()
	_, _, err := svc.ApplyEvent(ctx, event("GONE", domain.StatusCreated, t0))
	require.NoError(t, err)

	_, err = svc.LoadSnapshot(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
	_, err = repo.FindByID("GONE")
	assert.Error(t, err)
}

func TestLoadSnapshot_NetworkFailureKeepsCollection(t *testing.T) {
	source := &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			return nil, apperrors.NewNetworkError("GET /orders", 503, nil)
		},
	}
	svc, repo := newTestSyncService(source)
	_, _, err := svc.ApplyEvent(context.Background(), event("A1", domain.StatusCreated, t0))
	require.NoError(t, err)

	_, err = svc.LoadSnapshot(context.Background())

	_, ok := apperrors.IsNetworkError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, repo.Len())
}

func TestLoadSnapshot_SkipsUnknownStatus(t *testing.T) {
	svc, repo := newTestSyncService(singlePage(remoteOrder("A1", "created", t0), remoteOrder("B2", "lost", t0)))

	_, err := svc.LoadSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.Len())
}

func TestLoadSnapshot_FillsDetailFieldsFromLocalCopy(t *testing.T) {
	svc, repo := newTestSyncService(singlePage(remoteOrder("A1", "picked_up", t1)))
	full := domain.Order{
		OrderID: "A1", ProductName: "Laptop", CustomerName: "John Smith", CustomerAddress: "Baker Street",
		MerchantName: "acme", CustomerContact: "9876543210", CurrentStatus: domain.StatusCreated, CreatedAt: t0, UpdatedAt: t0,
	}
	svc.MergeRemote(full)

	_, err := svc.LoadSnapshot(context.Background())

	require.NoError(t, err)
	o, _ := repo.FindByID("A1")
	assert.Equal(t, domain.StatusPickedUp, o.CurrentStatus)
	assert.Equal(t, "Laptop", o.ProductName)
	assert.Equal(t, "Baker Street", o.CustomerAddress)
}

// E1 created@t1, then E2 delivered@t2 arrives while a snapshot taken at t0 is
// in flight. The snapshot must not regress the order.
func TestOrderingSafety_SnapshotInterleavedWithEvents(t *testing.T) {
	var svc *SyncService
	source := &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			if skip > 0 {
				return &dto.OrderListResponse{}, nil
			}
			_, _, err := svc.ApplyEvent(ctx, event("A1", domain.StatusDelivered, t2))
			require.NoError(t, err)
			return &dto.OrderListResponse{Orders: []dto.OrderDTO{remoteOrder("A1", "created", t0)}}, nil
		},
	}
	svc, repo := newTestSyncService(source)
	ctx := context.Background()

	_, _, err := svc.ApplyEvent(ctx, event("A1", domain.StatusCreated, t1))
	require.NoError(t, err)
	_, err = svc.LoadSnapshot(ctx)
	require.NoError(t, err)

	o, err := repo.FindByID("A1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, o.CurrentStatus)
	assert.Equal(t, t2, o.UpdatedAt)
}

func TestLoadSnapshot_KeepsOrdersAnnouncedDuringFetch(t *testing.T) {
	var svc *SyncService
	source := &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			if skip > 0 {
				return &dto.OrderListResponse{}, nil
			}
			_, _, err := svc.ApplyEvent(ctx, event("FRESH", domain.StatusCreated, t2))
			require.NoError(t, err)
			return &dto.OrderListResponse{Orders: []dto.OrderDTO{remoteOrder("A1", "created", t0)}}, nil
		},
	}
	svc, repo := newTestSyncService(source)

	_, err := svc.LoadSnapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, repo.Len())
	_, err = repo.FindByID("FRESH")
	assert.NoError(t, err)
}

func TestMergeRemote(t *testing.T) {
	svc, repo := newTestSyncService(singlePage())
	o := domain.Order{OrderID: "A1", MerchantName: "acme", CurrentStatus: domain.StatusCreated, UpdatedAt: t1}

	_, outcome := svc.MergeRemote(o)
	assert.Equal(t, domain.MergeInserted, outcome)

	older := o
	older.CurrentStatus = domain.StatusCancelled
	older.UpdatedAt = t0
	stored, outcome := svc.MergeRemote(older)
	assert.Equal(t, domain.MergeStale, outcome)
	assert.Equal(t, domain.StatusCreated, stored.CurrentStatus)

	svc.Reset()
	assert.Equal(t, 0, repo.Len())
}
