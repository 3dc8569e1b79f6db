package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
)

type catalogService struct {
	remote Remote
	logger *zap.Logger

	mu       sync.RWMutex
	statuses domain.StatusSet
}

// NewService starts with the built-in status enum until LoadStatuses succeeds.
func NewService(remote Remote, logger *zap.Logger) Service {
	return &catalogService{
		remote:   remote,
		logger:   logger,
		statuses: domain.NewStatusSet(domain.DefaultStatuses()...),
	}
}

func (s *catalogService) Statuses() domain.StatusSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses
}

// LoadStatuses replaces the enum with the one reported by the remote. An
// empty answer keeps the current set.
func (s *catalogService) LoadStatuses(ctx context.Context) error {
	resp, err := s.remote.ListStatuses(ctx)
	if err != nil {
		s.logger.Warn("loading order statuses failed, keeping current set", zap.Error(err))
		return err
	}

	statuses := make([]domain.Status, 0, len(resp.Statuses))
	for _, st := range resp.Statuses {
		statuses = append(statuses, domain.Status(st))
	}
	set := domain.NewStatusSet(statuses...)
	if set.Len() == 0 {
		s.logger.Warn("remote reported no order statuses, keeping current set")
		return nil
	}

	s.mu.Lock()
	s.statuses = set
	s.mu.Unlock()

	s.logger.Info("order statuses loaded", zap.Int("count", set.Len()))
	return nil
}

func (s *catalogService) Merchants(ctx context.Context) ([]string, error) {
	resp, err := s.remote.ListMerchants(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.Merchants))
	merchants := make([]string, 0, len(resp.Merchants))
	for _, m := range resp.Merchants {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		merchants = append(merchants, m)
	}
	sort.Strings(merchants)
	return merchants, nil
}

func (s *catalogService) Reset() {
	s.mu.Lock()
	s.statuses = domain.NewStatusSet(domain.DefaultStatuses()...)
	s.mu.Unlock()
}
