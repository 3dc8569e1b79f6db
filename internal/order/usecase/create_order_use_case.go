package usecase

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
	"ordertrack/internal/metrics"
)

var (
	customerNamePattern = regexp.MustCompile(`^[A-Za-z\s]+$`)
	contactPattern      = regexp.MustCompile(`^[0-9]{7,15}$`)
)

type CreateOrderUseCase struct {
	remote   RemoteCommands
	sessions SessionReader
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewCreateOrderUseCase(remote RemoteCommands, sessions SessionReader, m *metrics.Registry, logger *zap.Logger) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		remote:   remote,
		sessions: sessions,
		metrics:  m,
		logger:   logger,
	}
}

// CreateOrder validates input locally and submits it. The collection is not
// touched: the order arrives through the stream or the next snapshot.
func (uc *CreateOrderUseCase) CreateOrder(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error) {
	sess, ok := uc.sessions.Current()
	if !ok {
		return nil, apperrors.NewForbiddenError("no active session")
	}
	if !sess.Role.CanCreateOrders() {
		return nil, apperrors.NewForbiddenError("only merchants can create orders")
	}

	input = normalizeInput(input)
	if err := ValidateCreateOrderInput(input); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := uc.remote.CreateOrder(ctx, dto.CreateOrderRequest{
		OrderID:         input.OrderID,
		ProductName:     input.ProductName,
		CustomerName:    input.CustomerName,
		CustomerContact: input.CustomerContact,
		CustomerAddress: input.CustomerAddress,
		MerchantName:    sess.Subject,
	})
	uc.observe(start, err)
	if err != nil {
		uc.logger.Warn("create order failed", zap.String("orderId", input.OrderID), zap.Error(err))
		return nil, err
	}

	status := domain.ParseStatus(resp.Status)
	if status == "" {
		status = domain.StatusCreated
	}
	orderID := resp.OrderID
	if orderID == "" {
		orderID = input.OrderID
	}

	uc.logger.Info("order submitted", zap.String("orderId", orderID), zap.String("merchant", sess.Subject))
	return &domain.Order{
		OrderID:         orderID,
		ProductName:     input.ProductName,
		CustomerName:    input.CustomerName,
		CustomerContact: input.CustomerContact,
		CustomerAddress: input.CustomerAddress,
		MerchantName:    sess.Subject,
		CurrentStatus:   status,
	}, nil
}

func (uc *CreateOrderUseCase) observe(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	uc.metrics.CommandLatency.WithLabelValues("create_order", result).Observe(time.Since(start).Seconds())
}

func normalizeInput(in domain.CreateOrderInput) domain.CreateOrderInput {
	return domain.CreateOrderInput{
		OrderID:         strings.TrimSpace(in.OrderID),
		ProductName:     strings.TrimSpace(in.ProductName),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerContact: strings.TrimSpace(in.CustomerContact),
		CustomerAddress: strings.TrimSpace(in.CustomerAddress),
	}
}

// ValidateCreateOrderInput collects every field error of a new order.
func ValidateCreateOrderInput(in domain.CreateOrderInput) error {
	var details []apperrors.ValidationDetail

	if in.OrderID == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "order_id",
			Message: "order_id is required",
		})
	}

	if in.ProductName == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "product_name",
			Message: "product_name is required",
		})
	}

	if !customerNamePattern.MatchString(in.CustomerName) {
		msg := "customer_name must contain only letters and spaces"
		if in.CustomerName == "" {
			msg = "customer_name is required"
		}
		details = append(details, apperrors.ValidationDetail{
			Field:   "customer_name",
			Message: msg,
		})
	}

	if !contactPattern.MatchString(in.CustomerContact) {
		msg := "customer_contact must be 7 to 15 digits"
		if in.CustomerContact == "" {
			msg = "customer_contact is required"
		}
		details = append(details, apperrors.ValidationDetail{
			Field:   "customer_contact",
			Message: msg,
		})
	}

	if in.CustomerAddress == "" {
		details = append(details, apperrors.ValidationDetail{
			Field:   "customer_address",
			Message: "customer_address is required",
		})
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}

	return nil
}
