package catalog

import (
	"context"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
)

type UseCase interface {
	ListStatuses(ctx context.Context) (*StatusesResponse, error)
	ListMerchants(ctx context.Context) (*MerchantsResponse, error)
}

type Service interface {
	Statuses() domain.StatusSet
	LoadStatuses(ctx context.Context) error
	Merchants(ctx context.Context) ([]string, error)
	Reset()
}

type Remote interface {
	ListStatuses(ctx context.Context) (*dto.StatusesResponse, error)
	ListMerchants(ctx context.Context) (*dto.MerchantsResponse, error)
}

type SessionReader interface {
	Current() (domain.Session, bool)
}
