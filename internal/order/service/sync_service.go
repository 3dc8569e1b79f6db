package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	"ordertrack/internal/metrics"
	"ordertrack/internal/order/repository"
)

const maxSnapshotPages = 1000

type SnapshotSource interface {
	ListOrders(ctx context.Context, skip, limit int) (*dto.OrderListResponse, error)
}

type StatusProvider interface {
	Statuses() domain.StatusSet
}

type OrderRepository interface {
	FindByID(orderID string) (*domain.Order, error)
	List() []domain.Order
	Len() int
	Version() uint64
	Upsert(orderID string, fn func(existing *domain.Order) (domain.Order, bool)) domain.Order
	Replace(fn func(current map[string]repository.Entry) []domain.Order)
	Clear()
}

// SyncService merges snapshot pages and stream events into the order
// collection. Newer information wins by UpdatedAt, never by arrival order.
type SyncService struct {
	repo     OrderRepository
	source   SnapshotSource
	statuses StatusProvider
	pageSize int
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewSyncService(
	repo OrderRepository,
	source SnapshotSource,
	statuses StatusProvider,
	pageSize int,
	m *metrics.Registry,
	logger *zap.Logger,
) *SyncService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &SyncService{
		repo:     repo,
		source:   source,
		statuses: statuses,
		pageSize: pageSize,
		metrics:  m,
		logger:   logger,
	}
}

// LoadSnapshot fetches every order visible to the session and replaces the
// collection with it. For orders held on both sides the newer UpdatedAt wins.
// Local orders missing from the snapshot are dropped unless a stream event
// wrote them while the snapshot was in flight.
func (s *SyncService) LoadSnapshot(ctx context.Context) ([]domain.Order, error) {
	start := time.Now()
	since := s.repo.Version()

	remote, err := s.fetchAll(ctx)
	if err != nil {
		s.metrics.SnapshotLoads.WithLabelValues("error").Inc()
		s.logger.Warn("snapshot load failed", zap.Error(err))
		return nil, err
	}

	var inserted, updated, kept, stale int
	s.repo.Replace(func(current map[string]repository.Entry) []domain.Order {
		out := make([]domain.Order, 0, len(remote))
		seen := make(map[string]struct{}, len(remote))
		for _, o := range remote {
			seen[o.OrderID] = struct{}{}
			e, ok := current[o.OrderID]
			if !ok {
				inserted++
				out = append(out, o)
				continue
			}
			merged, outcome := domain.MergeOrder(&e.Order, o)
			switch outcome {
			case domain.MergeUpdated:
				updated++
			case domain.MergeStale:
				stale++
			}
			out = append(out, merged)
		}
		for id, e := range current {
			if _, ok := seen[id]; !ok && e.Version > since {
				kept++
				out = append(out, e.Order)
			}
		}
		return out
	})

	s.metrics.SnapshotLoads.WithLabelValues("ok").Inc()
	s.metrics.OrdersTracked.Set(float64(s.repo.Len()))
	s.logger.Info("snapshot loaded",
		zap.Int("orders", len(remote)),
		zap.Int("inserted", inserted),
		zap.Int("updated", updated),
		zap.Int("staleRemote", stale),
		zap.Int("keptLocal", kept),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s.repo.List(), nil
}

func (s *SyncService) fetchAll(ctx context.Context) ([]domain.Order, error) {
	known := s.statuses.Statuses()
	byID := make(map[string]domain.Order)
	var ids []string

	for page := 0; page < maxSnapshotPages; page++ {
		resp, err := s.source.ListOrders(ctx, page*s.pageSize, s.pageSize)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Orders {
			o := item.ToDomain()
			if o.OrderID == "" {
				s.metrics.EventsDropped.WithLabelValues("malformed").Inc()
				continue
			}
			if known.Len() > 0 && !known.Contains(o.CurrentStatus) {
				s.metrics.EventsDropped.WithLabelValues("unknown_status").Inc()
				s.logger.Warn("snapshot order with unknown status skipped",
					zap.String("orderId", o.OrderID), zap.String("status", string(o.CurrentStatus)))
				continue
			}
			// The collection can shift between pages; keep the newest copy.
			if prev, ok := byID[o.OrderID]; ok {
				o, _ = domain.MergeOrder(&prev, o)
			} else {
				ids = append(ids, o.OrderID)
			}
			byID[o.OrderID] = o
		}

		if len(resp.Orders) < s.pageSize {
			break
		}
	}

	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

// ApplyEvent validates ev and merges it into the collection. Invalid events
// are dropped and logged; the returned error is informational only.
func (s *SyncService) ApplyEvent(ctx context.Context, ev domain.StatusEvent) (domain.Order, domain.MergeOutcome, error) {
	if err := ev.Validate(s.statuses.Statuses()); err != nil {
		s.metrics.EventsDropped.WithLabelValues("invalid").Inc()
		s.logger.Warn("dropping invalid event", zap.String("orderId", ev.OrderID), zap.Error(err))
		return domain.Order{}, domain.MergeUnchanged, err
	}

	var outcome domain.MergeOutcome
	stored := s.repo.Upsert(ev.OrderID, func(existing *domain.Order) (domain.Order, bool) {
		var merged domain.Order
		merged, outcome = domain.MergeEvent(existing, ev)
		return merged, outcome == domain.MergeInserted || outcome == domain.MergeUpdated
	})

	s.metrics.EventsApplied.WithLabelValues(outcome.String()).Inc()
	s.metrics.OrdersTracked.Set(float64(s.repo.Len()))

	fields := []zap.Field{
		zap.String("orderId", ev.OrderID),
		zap.String("status", string(ev.NewStatus)),
		zap.String("outcome", outcome.String()),
	}
	if outcome == domain.MergeStale {
		s.logger.Info("stale event ignored", append(fields, zap.Time("eventTs", ev.Timestamp), zap.Time("localTs", stored.UpdatedAt))...)
	} else {
		s.logger.Debug("event applied", fields...)
	}
	return stored, outcome, nil
}

// MergeRemote folds a freshly fetched order into the collection.
func (s *SyncService) MergeRemote(remote domain.Order) (domain.Order, domain.MergeOutcome) {
	var outcome domain.MergeOutcome
	stored := s.repo.Upsert(remote.OrderID, func(existing *domain.Order) (domain.Order, bool) {
		if existing == nil {
			outcome = domain.MergeInserted
			return remote, true
		}
		var merged domain.Order
		merged, outcome = domain.MergeOrder(existing, remote)
		return merged, merged != *existing
	})

	s.metrics.EventsApplied.WithLabelValues(outcome.String()).Inc()
	s.metrics.OrdersTracked.Set(float64(s.repo.Len()))
	return stored, outcome
}

// Reset drops all orders. Called on logout.
func (s *SyncService) Reset() {
	s.repo.Clear()
	s.metrics.OrdersTracked.Set(0)
	s.logger.Info("order collection cleared")
}
