package dto

import (
	"ordertrack/internal/domain"
)

type OrderDTO struct {
	OrderID         string `json:"order_id"`
	ProductName     string `json:"product_name,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerContact string `json:"customer_contact,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`
	MerchantName    string `json:"merchant_name,omitempty"`
	CurrentStatus   string `json:"current_status"`
	CreatedAt       Time   `json:"created_at"`
	UpdatedAt       Time   `json:"updated_at"`
}

func (o OrderDTO) ToDomain() domain.Order {
	return domain.Order{
		OrderID:         o.OrderID,
		ProductName:     o.ProductName,
		CustomerName:    o.CustomerName,
		CustomerContact: o.CustomerContact,
		CustomerAddress: o.CustomerAddress,
		MerchantName:    o.MerchantName,
		CurrentStatus:   domain.ParseStatus(o.CurrentStatus),
		CreatedAt:       o.CreatedAt.Time,
		UpdatedAt:       o.UpdatedAt.Time,
	}
}

func OrderFromDomain(o domain.Order) OrderDTO {
	return OrderDTO{
		OrderID:         o.OrderID,
		ProductName:     o.ProductName,
		CustomerName:    o.CustomerName,
		CustomerContact: o.CustomerContact,
		CustomerAddress: o.CustomerAddress,
		MerchantName:    o.MerchantName,
		CurrentStatus:   string(o.CurrentStatus),
		CreatedAt:       Time{o.CreatedAt},
		UpdatedAt:       Time{o.UpdatedAt},
	}
}

func OrdersFromDomain(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = OrderFromDomain(o)
	}
	return out
}

type OrderListResponse struct {
	Count   int        `json:"count"`
	Message string     `json:"message,omitempty"`
	Orders  []OrderDTO `json:"orders"`
}

type CreateOrderRequest struct {
	OrderID         string `json:"order_id"`
	ProductName     string `json:"product_name"`
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`
	CustomerAddress string `json:"customer_address"`
	MerchantName    string `json:"merchant_name,omitempty"`
}

func (r CreateOrderRequest) ToInput() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		OrderID:         r.OrderID,
		ProductName:     r.ProductName,
		CustomerName:    r.CustomerName,
		CustomerContact: r.CustomerContact,
		CustomerAddress: r.CustomerAddress,
	}
}

// CreateOrderResponse is the remote acknowledgement of POST /orders.
type CreateOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type StatusUpdateRequest struct {
	NewStatus string `json:"new_status"`
}

// StatusUpdateResponse accepts both the transition acknowledgement
// ({order_id, old_status, new_status, updated_at}) and a full order body.
type StatusUpdateResponse struct {
	OrderID       string `json:"order_id"`
	OldStatus     string `json:"old_status,omitempty"`
	NewStatus     string `json:"new_status,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
	UpdatedAt     Time   `json:"updated_at"`
}

func (r StatusUpdateResponse) Status() domain.Status {
	if r.NewStatus != "" {
		return domain.ParseStatus(r.NewStatus)
	}
	return domain.ParseStatus(r.CurrentStatus)
}

type HistoryEntryDTO struct {
	Status    string `json:"status"`
	UpdatedBy string `json:"updated_by"`
	Timestamp Time   `json:"timestamp"`
}

type HistoryResponse struct {
	OrderID string            `json:"order_id"`
	History []HistoryEntryDTO `json:"history"`
}

func (r HistoryResponse) ToDomain() []domain.HistoryEntry {
	entries := make([]domain.HistoryEntry, 0, len(r.History))
	for _, h := range r.History {
		entries = append(entries, domain.HistoryEntry{
			Status:    domain.ParseStatus(h.Status),
			UpdatedBy: h.UpdatedBy,
			Timestamp: h.Timestamp.Time,
		})
	}
	return entries
}

func HistoryFromDomain(orderID string, entries []domain.HistoryEntry) HistoryResponse {
	out := HistoryResponse{OrderID: orderID, History: make([]HistoryEntryDTO, len(entries))}
	for i, e := range entries {
		out.History[i] = HistoryEntryDTO{
			Status:    string(e.Status),
			UpdatedBy: e.UpdatedBy,
			Timestamp: Time{e.Timestamp},
		}
	}
	return out
}

type StatusesResponse struct {
	Statuses []string `json:"statuses"`
}

type MerchantsResponse struct {
	Merchants []string `json:"merchants"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Username    string `json:"username"`
}

// RemoteErrorResponse is the error body of the remote API. Detail is either a
// string or a list of field errors.
type RemoteErrorResponse struct {
	Detail any `json:"detail"`
}
