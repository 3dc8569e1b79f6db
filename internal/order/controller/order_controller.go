package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Engine interface {
	LoadSnapshot(ctx context.Context) ([]domain.Order, error)
	GetOrders(filter domain.OrderFilter) []domain.Order
	GroupByStatus(filter domain.OrderFilter) []domain.StatusGroup
	GetOrder(orderID string) (*domain.Order, error)
	RefreshOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)
	CreateOrder(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error)
	TransitionStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error)
}

type OrderController struct {
	engine Engine
	logger *zap.Logger
}

func NewOrderController(engine Engine, logger *zap.Logger) *OrderController {
	return &OrderController{
		engine: engine,
		logger: logger,
	}
}

func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, ve := filterFromQuery(r)
	if ve != nil {
		c.writeValidationError(w, uuid.New().String(), ve.Message, ve.Details...)
		return
	}

	orders := c.engine.GetOrders(filter)
	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		Count:  len(orders),
		Orders: dto.OrdersFromDomain(orders),
	})
}

func (c *OrderController) ListGrouped(w http.ResponseWriter, r *http.Request) {
	filter, ve := filterFromQuery(r)
	if ve != nil {
		c.writeValidationError(w, uuid.New().String(), ve.Message, ve.Details...)
		return
	}

	groups := c.engine.GroupByStatus(filter)
	c.writeJSON(w, http.StatusOK, dto.GroupedFromDomain(groups))
}

// ReloadSnapshot forces a full snapshot load.
func (c *OrderController) ReloadSnapshot(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	orders, err := c.engine.LoadSnapshot(r.Context())
	if err != nil {
		c.handleEngineError(w, traceID, "", err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.OrderListResponse{
		Count:   len(orders),
		Message: "snapshot reloaded",
		Orders:  dto.OrdersFromDomain(orders),
	})
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	orderID := chi.URLParam(r, "orderId")

	order, err := c.engine.GetOrder(orderID)
	if err != nil {
		c.handleEngineError(w, traceID, orderID, err, c.logger.With(zap.String("traceId", traceID)))
		return
	}

	c.writeJSON(w, http.StatusOK, dto.OrderResponse{TraceID: traceID, Order: dto.OrderFromDomain(*order)})
}

func (c *OrderController) RefreshOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))
	orderID := chi.URLParam(r, "orderId")

	order, err := c.engine.RefreshOrder(r.Context(), orderID)
	if err != nil {
		c.handleEngineError(w, traceID, orderID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.OrderResponse{TraceID: traceID, Order: dto.OrderFromDomain(*order)})
}

func (c *OrderController) GetHistory(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))
	orderID := chi.URLParam(r, "orderId")

	entries, err := c.engine.GetHistory(r.Context(), orderID)
	if err != nil {
		c.handleEngineError(w, traceID, orderID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.HistoryFromDomain(orderID, entries))
}

func (c *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	// Decode request body
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	order, err := c.engine.CreateOrder(r.Context(), req.ToInput())
	if err != nil {
		c.handleEngineError(w, traceID, req.OrderID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusAccepted, dto.CreateOrderAccepted{
		TraceID:   traceID,
		OrderID:   order.OrderID,
		Status:    string(order.CurrentStatus),
		Message:   "order submitted",
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))
	orderID := chi.URLParam(r, "orderId")

	// Decode request body
	var req dto.StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeValidationError(w, traceID, "invalid JSON body", apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return
	}

	order, err := c.engine.TransitionStatus(r.Context(), orderID, req.NewStatus)
	if err != nil {
		c.handleEngineError(w, traceID, orderID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.TransitionResponse{
		TraceID:   traceID,
		OrderID:   order.OrderID,
		Status:    string(order.CurrentStatus),
		Order:     dto.OrderFromDomain(*order),
		Timestamp: time.Now().UTC(),
	})
}

// filterFromQuery reads the list filters. status accepts "active" for every
// non-terminal order; from_date and to_date bound created_at.
func filterFromQuery(r *http.Request) (domain.OrderFilter, *apperrors.ValidationError) {
	q := r.URL.Query()
	status, active := domain.ParseStatusFilter(q.Get("status"))
	filter := domain.OrderFilter{
		Status:          status,
		Active:          active,
		Merchant:        strings.TrimSpace(q.Get("merchant")),
		CustomerContact: strings.TrimSpace(q.Get("customer_contact")),
		Search:          q.Get("q"),
	}

	var details []apperrors.ValidationDetail
	from, err := domain.ParseCreatedBound(q.Get("from_date"), false)
	if err != nil {
		details = append(details, apperrors.ValidationDetail{Field: "from_date", Message: err.Error()})
	}
	to, err := domain.ParseCreatedBound(q.Get("to_date"), true)
	if err != nil {
		details = append(details, apperrors.ValidationDetail{Field: "to_date", Message: err.Error()})
	}
	if len(details) > 0 {
		return domain.OrderFilter{}, apperrors.NewValidationError("invalid filter", details...)
	}

	filter.CreatedFrom = from
	filter.CreatedTo = to
	return filter, nil
}


func (c *OrderController) handleEngineError(w http.ResponseWriter, traceID, orderID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeValidationError(w, traceID, ve.Message, ve.Details...)
		return
	}

	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}

	if _, ok := apperrors.IsForbiddenError(err); ok {
		c.writeErrorResponse(w, traceID, orderID, http.StatusForbidden, "FORBIDDEN", err.Error())
		return
	}

	if re, ok := apperrors.IsRejectedError(err); ok {
		logger.Info("rejected by remote", zap.Int("remoteStatus", re.StatusCode), zap.String("reason", re.Reason))
		c.writeErrorResponse(w, traceID, orderID, http.StatusConflict, "REJECTED", re.Reason)
		return
	}

	if _, ok := apperrors.IsProtocolError(err); ok {
		logger.Warn("invalid data from remote", zap.Error(err))
		c.writeErrorResponse(w, traceID, orderID, http.StatusBadGateway, "PROTOCOL_ERROR", err.Error())
		return
	}

	if _, ok := apperrors.IsNetworkError(err); ok {
		logger.Warn("remote unavailable", zap.Error(err))
		c.writeErrorResponse(w, traceID, orderID, http.StatusBadGateway, "REMOTE_UNAVAILABLE", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeErrorResponse(w, traceID, orderID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func (c *OrderController) writeErrorResponse(w http.ResponseWriter, traceID, orderID string, statusCode int, code, message string) {
	response := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    statusCode,
		Message:   message,
		Code:      code,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	}

	c.writeJSON(w, statusCode, response)
}

type validationErrorResponse struct {
	TraceID string                       `json:"traceId"`
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Details []apperrors.ValidationDetail `json:"details"`
}

func (c *OrderController) writeValidationError(w http.ResponseWriter, traceID string, message string, details ...apperrors.ValidationDetail) {
	response := validationErrorResponse{
		TraceID: traceID,
		Error:   "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}

	c.writeJSON(w, http.StatusBadRequest, response)
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
