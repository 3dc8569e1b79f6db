package usecase

import (
	"context"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
)

type SessionReader interface {
	Current() (domain.Session, bool)
}

type StatusProvider interface {
	Statuses() domain.StatusSet
}

type RemoteCommands interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*dto.CreateOrderResponse, error)
	UpdateStatus(ctx context.Context, orderID string, req dto.StatusUpdateRequest) (*dto.StatusUpdateResponse, error)
}

type RemoteReader interface {
	GetOrder(ctx context.Context, orderID string) (*dto.OrderDTO, error)
	GetHistory(ctx context.Context, orderID string) (*dto.HistoryResponse, error)
}

type OrderSync interface {
	ApplyEvent(ctx context.Context, ev domain.StatusEvent) (domain.Order, domain.MergeOutcome, error)
	MergeRemote(remote domain.Order) (domain.Order, domain.MergeOutcome)
}

type OrderReader interface {
	FindByID(orderID string) (*domain.Order, error)
	List() []domain.Order
}
