package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

// QueryUseCase serves the read model. Order reads come from the local
// collection; history is always fetched from the remote.
type QueryUseCase struct {
	orders   OrderReader
	remote   RemoteReader
	sync     OrderSync
	statuses StatusProvider
	logger   *zap.Logger
}

func NewQueryUseCase(orders OrderReader, remote RemoteReader, sync OrderSync, statuses StatusProvider, logger *zap.Logger) *QueryUseCase {
	return &QueryUseCase{
		orders:   orders,
		remote:   remote,
		sync:     sync,
		statuses: statuses,
		logger:   logger,
	}
}

// GetOrders returns the matching orders, newest first.
func (uc *QueryUseCase) GetOrders(filter domain.OrderFilter) []domain.Order {
	all := uc.orders.List()
	out := make([]domain.Order, 0, len(all))
	for _, o := range all {
		if filter.Matches(o) {
			out = append(out, o)
		}
	}
	domain.SortByNewest(out)
	return out
}

func (uc *QueryUseCase) GroupByStatus(filter domain.OrderFilter) []domain.StatusGroup {
	return domain.GroupByStatus(uc.GetOrders(filter), uc.statuses.Statuses())
}

func (uc *QueryUseCase) GetOrder(orderID string) (*domain.Order, error) {
	return uc.orders.FindByID(orderID)
}

// RefreshOrder fetches one order from the remote and merges it.
func (uc *QueryUseCase) RefreshOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	resp, err := uc.remote.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	remote := resp.ToDomain()
	if remote.OrderID == "" {
		remote.OrderID = orderID
	}
	if known := uc.statuses.Statuses(); known.Len() > 0 && !known.Contains(remote.CurrentStatus) {
		return nil, apperrors.NewProtocolError(fmt.Sprintf("order %s has unknown status %q", orderID, remote.CurrentStatus), nil)
	}

	merged, outcome := uc.sync.MergeRemote(remote)
	uc.logger.Debug("order refreshed", zap.String("orderId", orderID), zap.String("outcome", outcome.String()))
	return &merged, nil
}

// GetHistory returns the status log of orderID, oldest first.
func (uc *QueryUseCase) GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	resp, err := uc.remote.GetHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}

	entries := resp.ToDomain()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}
