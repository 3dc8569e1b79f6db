package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order/repository"
	"ordertrack/internal/order/service"
)

type mockCatalog struct {
	LoadStatusesFunc func(ctx context.Context) error
}

func (m *mockCatalog) Statuses() domain.StatusSet {
	return domain.NewStatusSet(domain.DefaultStatuses()...)
}

func (m *mockCatalog) LoadStatuses(ctx context.Context) error {
	return m.LoadStatusesFunc(ctx)
}

func (m *mockCatalog) Reset() {}

type mockSnapshotSource struct {
	ListOrdersFunc func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error)
}

func (m *mockSnapshotSource) ListOrders(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
	return m.ListOrdersFunc(ctx, skip, limit)
}

func newTestEngine(catalog StatusCatalog, logger *zap.Logger) *Engine {
	source := &mockSnapshotSource{
		ListOrdersFunc: func(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error) {
			return &dto.OrderListResponse{}, nil
		},
	}
	repo := repository.NewMemoryOrderRepository()
	return &Engine{
		sync:    service.NewSyncService(repo, source, catalog, 10, metrics.NewRegistry(), logger),
		catalog: catalog,
		logger:  logger,
	}
}

func TestEngine_StartLogsFailedStatusLoad(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	catalog := &mockCatalog{
		LoadStatusesFunc: func(ctx context.Context) error {
			return errors.New("remote down")
		},
	}
	engine := newTestEngine(catalog, zap.New(core))

	require.NoError(t, engine.Start(context.Background()))

	entries := logs.FilterMessage("loading order statuses failed, using built-in set").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "remote down", entries[0].ContextMap()["error"])
}

func TestEngine_StartQuietWhenStatusesLoad(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	catalog := &mockCatalog{
		LoadStatusesFunc: func(ctx context.Context) error { return nil },
	}
	engine := newTestEngine(catalog, zap.New(core))

	require.NoError(t, engine.Start(context.Background()))
	assert.Equal(t, 0, logs.Len())
}
