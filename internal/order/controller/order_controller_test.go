package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ordertrack/internal/domain"
	"ordertrack/internal/dto"
	apperrors "ordertrack/internal/errors"
)

type mockEngine struct {
	LoadSnapshotFunc     func(ctx context.Context) ([]domain.Order, error)
	GetOrdersFunc        func(filter domain.OrderFilter) []domain.Order
	GroupByStatusFunc    func(filter domain.OrderFilter) []domain.StatusGroup
	GetOrderFunc         func(orderID string) (*domain.Order, error)
	RefreshOrderFunc     func(ctx context.Context, orderID string) (*domain.Order, error)
	GetHistoryFunc       func(ctx context.Context, orderID string) ([]domain.HistoryEntry, error)
	CreateOrderFunc      func(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error)
	TransitionStatusFunc func(ctx context.Context, orderID, newStatus string) (*domain.Order, error)
}

func (m *mockEngine) LoadSnapshot(ctx context.Context) ([]domain.Order, error) {
	return m.LoadSnapshotFunc(ctx)
}

func (m *mockEngine) GetOrders(filter domain.OrderFilter) []domain.Order {
	return m.GetOrdersFunc(filter)
}

func (m *mockEngine) GroupByStatus(filter domain.OrderFilter) []domain.StatusGroup {
	return m.GroupByStatusFunc(filter)
}

func (m *mockEngine) GetOrder(orderID string) (*domain.Order, error) {
	return m.GetOrderFunc(orderID)
}

func (m *mockEngine) RefreshOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.RefreshOrderFunc(ctx, orderID)
}

func (m *mockEngine) GetHistory(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
	return m.GetHistoryFunc(ctx, orderID)
}

func (m *mockEngine) CreateOrder(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error) {
	return m.CreateOrderFunc(ctx, input)
}

func (m *mockEngine) TransitionStatus(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
	return m.TransitionStatusFunc(ctx, orderID, newStatus)
}

func routerFor(c *OrderController) http.Handler {
	r := chi.NewRouter()
	r.Get("/orders", c.ListOrders)
	r.Get("/orders/grouped", c.ListGrouped)
	r.Post("/orders", c.CreateOrder)
	r.Get("/orders/{orderId}", c.GetOrder)
	r.Get("/orders/{orderId}/history", c.GetHistory)
	r.Put("/orders/{orderId}/status", c.TransitionStatus)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListOrders_PassesFilter(t *testing.T) {
	var got domain.OrderFilter
	engine := &mockEngine{
		GetOrdersFunc: func(filter domain.OrderFilter) []domain.Order {
			got = filter
			return []domain.Order{{OrderID: "A1", CurrentStatus: domain.StatusCreated}}
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders?status=Created&merchant=acme&q=john&customer_contact=9876543210", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderFilter{
		Status: domain.StatusCreated, Merchant: "acme", CustomerContact: "9876543210", Search: "john",
	}, got)
	var body dto.OrderListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "A1", body.Orders[0].OrderID)
}

func TestListOrders_ActiveAndDateRange(t *testing.T) {
	var got domain.OrderFilter
	engine := &mockEngine{
		GetOrdersFunc: func(filter domain.OrderFilter) []domain.Order {
			got = filter
			return nil
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders?status=ACTIVE&from_date=2025-03-01&to_date=2025-03-02", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, got.Active)
	assert.Empty(t, got.Status)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got.CreatedFrom)
	assert.Equal(t, 2, got.CreatedTo.Day())
	assert.Equal(t, 23, got.CreatedTo.Hour())
}

func TestListOrders_InvalidDate(t *testing.T) {
	called := false
	engine := &mockEngine{
		GetOrdersFunc: func(filter domain.OrderFilter) []domain.Order {
			called = true
			return nil
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders?from_date=yesterday", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "from_date")
	assert.False(t, called)
}

func TestListGrouped(t *testing.T) {
	engine := &mockEngine{
		GroupByStatusFunc: func(filter domain.OrderFilter) []domain.StatusGroup {
			return []domain.StatusGroup{
				{Status: domain.StatusCreated, Orders: []domain.Order{{OrderID: "A1"}}},
				{Status: domain.StatusDelivered, Orders: []domain.Order{}},
			}
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders/grouped", "")

	var body dto.GroupedOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Len(t, body.Groups, 2)
}

func TestGetOrder_NotFound(t *testing.T) {
	engine := &mockEngine{
		GetOrderFunc: func(orderID string) (*domain.Order, error) {
			return nil, apperrors.NewNotFoundError("order " + orderID + " not found")
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders/ZZ", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "ZZ", body.OrderID)
	assert.NotEmpty(t, body.TraceID)
}

func TestCreateOrder_InvalidJSON(t *testing.T) {
	h := routerFor(NewOrderController(&mockEngine{}, zap.NewNop()))

	rec := do(t, h, http.MethodPost, "/orders", "{")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestCreateOrder_ValidationDetails(t *testing.T) {
	engine := &mockEngine{
		CreateOrderFunc: func(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error) {
			assert.Equal(t, "John3", input.CustomerName)
			return nil, apperrors.NewValidationError("validation failed", apperrors.ValidationDetail{
				Field: "customer_name", Message: "customer_name must contain only letters and spaces",
			})
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodPost, "/orders", `{"order_id":"A1","customer_name":"John3"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body validationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Details, 1)
	assert.Equal(t, "customer_name", body.Details[0].Field)
}

func TestCreateOrder_Accepted(t *testing.T) {
	engine := &mockEngine{
		CreateOrderFunc: func(ctx context.Context, input domain.CreateOrderInput) (*domain.Order, error) {
			return &domain.Order{OrderID: input.OrderID, CurrentStatus: domain.StatusCreated}, nil
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodPost, "/orders", `{"order_id":"A1"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var body dto.CreateOrderAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A1", body.OrderID)
}

func TestTransitionStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"rejected", apperrors.NewRejectedError(400, "Invalid status transition"), http.StatusConflict},
		{"forbidden", apperrors.NewForbiddenError("only the operations team can change order status"), http.StatusForbidden},
		{"network", apperrors.NewNetworkError("PUT /orders/A1/status", 503, nil), http.StatusBadGateway},
		{"internal", apperrors.NewInternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &mockEngine{
				TransitionStatusFunc: func(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
					return nil, tt.err
				},
			}
			h := routerFor(NewOrderController(engine, zap.NewNop()))

			rec := do(t, h, http.MethodPut, "/orders/A1/status", `{"new_status":"delivered"}`)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestTransitionStatus_Success(t *testing.T) {
	ts := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	engine := &mockEngine{
		TransitionStatusFunc: func(ctx context.Context, orderID, newStatus string) (*domain.Order, error) {
			assert.Equal(t, "A1", orderID)
			assert.Equal(t, "picked_up", newStatus)
			return &domain.Order{OrderID: orderID, CurrentStatus: domain.StatusPickedUp, UpdatedAt: ts}, nil
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodPut, "/orders/A1/status", `{"new_status":"picked_up"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body dto.TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "picked_up", body.Status)
	assert.True(t, body.Order.UpdatedAt.Equal(ts))
}

func TestGetHistory(t *testing.T) {
	engine := &mockEngine{
		GetHistoryFunc: func(ctx context.Context, orderID string) ([]domain.HistoryEntry, error) {
			return []domain.HistoryEntry{{Status: domain.StatusCreated, UpdatedBy: "system"}}, nil
		},
	}
	h := routerFor(NewOrderController(engine, zap.NewNop()))

	rec := do(t, h, http.MethodGet, "/orders/A1/history", "")

	var body dto.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A1", body.OrderID)
	require.Len(t, body.History, 1)
	assert.Equal(t, "system", body.History[0].UpdatedBy)
}
