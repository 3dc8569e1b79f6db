package dto

import (
	"time"

	"ordertrack/internal/domain"
)

// Responses of the local API.

type OrderResponse struct {
	TraceID string   `json:"traceId"`
	Order   OrderDTO `json:"order"`
}

type TransitionResponse struct {
	TraceID   string    `json:"traceId"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Order     OrderDTO  `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

type CreateOrderAccepted struct {
	TraceID   string    `json:"traceId"`
	OrderID   string    `json:"orderId"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusGroupDTO struct {
	Status string     `json:"status"`
	Count  int        `json:"count"`
	Orders []OrderDTO `json:"orders"`
}

type GroupedOrdersResponse struct {
	Total  int              `json:"total"`
	Groups []StatusGroupDTO `json:"groups"`
}

func GroupedFromDomain(groups []domain.StatusGroup) GroupedOrdersResponse {
	resp := GroupedOrdersResponse{Groups: make([]StatusGroupDTO, len(groups))}
	for i, g := range groups {
		resp.Groups[i] = StatusGroupDTO{
			Status: string(g.Status),
			Count:  len(g.Orders),
			Orders: OrdersFromDomain(g.Orders),
		}
		resp.Total += len(g.Orders)
	}
	return resp
}

type ErrorResponse struct {
	TraceID   string    `json:"traceId"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	OrderID   string    `json:"orderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
