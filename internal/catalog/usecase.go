package catalog

import (
	"context"

	apperrors "ordertrack/internal/errors"
)

type catalogUseCase struct {
	service  Service
	sessions SessionReader
}

func NewUseCase(service Service, sessions SessionReader) UseCase {
	return &catalogUseCase{service: service, sessions: sessions}
}

func (uc *catalogUseCase) ListStatuses(ctx context.Context) (*StatusesResponse, error) {
	set := uc.service.Statuses()

	resp := &StatusesResponse{
		Statuses: make([]string, 0, set.Len()),
		Terminal: []string{},
	}
	for _, st := range set.List() {
		resp.Statuses = append(resp.Statuses, string(st))
		if st.IsTerminal() {
			resp.Terminal = append(resp.Terminal, string(st))
		}
	}
	return resp, nil
}

// ListMerchants is only available to the operations role.
func (uc *catalogUseCase) ListMerchants(ctx context.Context) (*MerchantsResponse, error) {
	sess, ok := uc.sessions.Current()
	if !ok {
		return nil, apperrors.NewForbiddenError("no active session")
	}
	if !sess.Role.CanListMerchants() {
		return nil, apperrors.NewForbiddenError("only the operations team can list merchants")
	}

	merchants, err := uc.service.Merchants(ctx)
	if err != nil {
		return nil, err
	}
	return &MerchantsResponse{Count: len(merchants), Merchants: merchants}, nil
}
