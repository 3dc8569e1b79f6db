package order

import (
	"context"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/order/service"
	"ordertrack/internal/order/usecase"
)

type StatusCatalog interface {
	Statuses() domain.StatusSet
	LoadStatuses(ctx context.Context) error
	Reset()
}

// Engine is the order synchronization engine: it owns the order collection
// for the lifetime of a session and is the only writer to it.
type Engine struct {
	sync       *service.SyncService
	catalog    StatusCatalog
	create     *usecase.CreateOrderUseCase
	transition *usecase.TransitionStatusUseCase
	query      *usecase.QueryUseCase
	logger     *zap.Logger
}

// Start loads the status enum and the first snapshot. A failed status load
// falls back to the built-in enum.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.catalog.LoadStatuses(ctx); err != nil {
		e.logger.Warn("loading order statuses failed, using built-in set", zap.Error(err))
	}
	_, err := e.sync.LoadSnapshot(ctx)
	return err
}

func (e *Engine) LoadSnapshot(ctx context.Context) ([]domain.Order, error) {
	return e.sync.LoadSnapshot(ctx)
}

// ApplyEvent merges one stream event. Invalid events are dropped and logged.
func (e *Engine) ApplyEvent(ctx context.Context, ev domain.StatusEvent) {
	_, _, _ = e.sync.ApplyEvent(ctx, ev)
}

// OnStreamConnected reloads the snapshot after a reconnect, since events may
// have been missed while the stream was down.
func (e *Engine) OnStreamConnected(ctx context.Context, reconnect bool) {
	if !reconnect {
		return
	}
	e.logger.Info("stream reconnected, reloading snapshot")
	if _, err := e.sync.LoadSnapshot(ctx); err != nil {
		e.logger.Warn("snapshot reload after reconnect failed", zap.Error(err))
	}
}

func (e *Engine) CreateOrder(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error) {
	return e.create.CreateOrder(ctx, input)
}

func (e *Engine) TransitionStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
	return e.transition.TransitionStatus(ctx, orderID, newStatus)
}

func (e *Engine) GetOrders(filter domain.OrderFilter) []domain.Order {
	return e.query.GetOrders(filter)
}

func (e *Engine) GroupByStatus(filter domain.OrderFilter) []domain.StatusGroup {
	return e.query.GroupByStatus(filter)
}

func (e *Engine) GetOrder(orderID string) (*domain.Order, error) {
	return e.query.GetOrder(orderID)
}

func (e *Engine) RefreshOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.query.RefreshOrder(ctx, orderID)
}

func (e *Engine) GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	return e.query.GetHistory(ctx, orderID)
}

func (e *Engine) Statuses() domain.StatusSet {
	return e.catalog.Statuses()
}

// Reset drops all session-derived state. Called on logout.
func (e *Engine) Reset() {
	e.sync.Reset()
	e.catalog.Reset()
}
