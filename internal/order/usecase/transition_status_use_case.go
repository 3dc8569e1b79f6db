package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/metrics"
)

type TransitionStatusUseCase struct {
	remote   RemoteCommands
	sync     OrderSync
	statuses StatusProvider
	sessions SessionReader
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewTransitionStatusUseCase(
	remote RemoteCommands,
	sync OrderSync,
	statuses StatusProvider,
	sessions SessionReader,
	m *metrics.Registry,
	logger *zap.Logger,
) *TransitionStatusUseCase {
	return &TransitionStatusUseCase{
		remote:   remote,
		sync:     sync,
		statuses: statuses,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

// TransitionStatus asks the remote to move orderID to newStatus. Whether the
// transition is legal is decided remotely; on success the confirmed status is
// merged like a stream event, on failure the collection is left as is.
func (uc *TransitionStatusUseCase) TransitionStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
	// Bloque 1: permisos
	sess, ok := uc.sessions.Current()
	if !ok {
		return nil, apperrors.NewForbiddenError("no active session")
	}
	if !sess.Role.CanTransitionStatus() {
		return nil, apperrors.NewForbiddenError("only the operations team can change order status")
	}

	// Bloque 2: validaciones locales
	orderID = strings.TrimSpace(orderID)
	status := domain.ParseStatus(newStatus)
	if err := uc.validate(orderID, status); err != nil {
		return nil, err
	}

	// Bloque 3: comando remoto
	start := time.Now()
	resp, err := uc.remote.UpdateStatus(ctx, orderID, dto.StatusUpdateRequest{NewStatus: string(status)})
	uc.observe(start, err)
	if err != nil {
		uc.logger.Warn("status transition failed",
			zap.String("orderId", orderID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, err
	}

	// Bloque 4: merge del resultado confirmado
	confirmed := resp.Status()
	if confirmed == "" {
		confirmed = status
	}
	eventID := resp.OrderID
	if eventID == "" {
		eventID = orderID
	}
	ev := domain.StatusEvent{
		OrderID:   eventID,
		NewStatus: confirmed,
		Timestamp: resp.UpdatedAt.Time,
		UpdatedBy: sess.Subject,
		Source:    "command",
	}
	order, outcome, err := uc.sync.ApplyEvent(ctx, ev)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("merging confirmed status of order %s", orderID), err)
	}

	uc.logger.Info("status transitioned",
		zap.String("orderId", orderID),
		zap.String("from", resp.OldStatus),
		zap.String("to", string(confirmed)),
		zap.String("outcome", outcome.String()),
	)
	return &order, nil
}

func (uc *TransitionStatusUseCase) validate(orderID string, status domain.Status) error {
	var details []apperrors.ValidationDetail

	if orderID == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "orderId",
			Message: "orderId is required",
		})
	}

	if status == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "new_status",
			Message: "new_status is required",
		})
	} else if known := uc.statuses.Statuses(); known.Len() > 0 && !known.Contains(status) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "new_status",
			Message: fmt.Sprintf("unknown status %q", status),
		})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}

func (uc *TransitionStatusUseCase) observe(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	uc.metrics.CommandLatency.WithLabelValues("transition_status", result).Observe(time.Since(start).Seconds())
}
