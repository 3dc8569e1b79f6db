package dto

import (
	"encoding/json"
	"strings"

	"ordertrack/internal/domain"
	apperrors "ordertrack/internal/errors"
)

// StreamFrame is one inbound push message. The remote has used new_status,
// current_status and status for the same field, and puts updated_by either at
// the top level or under metadata.
type StreamFrame struct {
	OrderID       string         `json:"order_id"`
	NewStatus     string         `json:"new_status,omitempty"`
	CurrentStatus string         `json:"current_status,omitempty"`
	Status        string         `json:"status,omitempty"`
	Timestamp     Time           `json:"timestamp"`
	UpdatedBy     string         `json:"updated_by,omitempty"`
	Metadata      *FrameMetadata `json:"metadata,omitempty"`

	MerchantName    string `json:"merchant_name,omitempty"`
	ProductName     string `json:"product_name,omitempty"`
	CustomerName    string `json:"customer_name,omitempty"`
	CustomerContact string `json:"customer_contact,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`
}

type FrameMetadata struct {
	UpdatedBy       string `json:"updated_by,omitempty"`
	Source          string `json:"source,omitempty"`
	CustomerContact string `json:"customer_contact,omitempty"`
}

// DecodeStreamFrame parses a raw frame into an event. A payload that is not a
// JSON object with string fields is a ProtocolError.
func DecodeStreamFrame(data []byte) (domain.StatusEvent, error) {
	var frame StreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return domain.StatusEvent{}, apperrors.NewProtocolError("decoding stream frame", err)
	}
	return frame.ToEvent(), nil
}

func (f StreamFrame) ToEvent() domain.StatusEvent {
	status := f.NewStatus
	if status == "" {
		status = f.CurrentStatus
	}
	if status == "" {
		status = f.Status
	}

	ev := domain.StatusEvent{
		OrderID:         strings.TrimSpace(f.OrderID),
		NewStatus:       domain.ParseStatus(status),
		Timestamp:       f.Timestamp.Time,
		UpdatedBy:       f.UpdatedBy,
		MerchantName:    f.MerchantName,
		ProductName:     f.ProductName,
		CustomerName:    f.CustomerName,
		CustomerContact: f.CustomerContact,
		CustomerAddress: f.CustomerAddress,
	}
	if f.Metadata != nil {
		if ev.UpdatedBy == "" {
			ev.UpdatedBy = f.Metadata.UpdatedBy
		}
		if ev.CustomerContact == "" {
			ev.CustomerContact = f.Metadata.CustomerContact
		}
		ev.Source = f.Metadata.Source
	}
	return ev
}

func StreamFrameFromEvent(ev domain.StatusEvent) StreamFrame {
	frame := StreamFrame{
		OrderID:         ev.OrderID,
		NewStatus:       string(ev.NewStatus),
		Timestamp:       Time{ev.Timestamp},
		UpdatedBy:       ev.UpdatedBy,
		MerchantName:    ev.MerchantName,
		ProductName:     ev.ProductName,
		CustomerName:    ev.CustomerName,
		CustomerContact: ev.CustomerContact,
		CustomerAddress: ev.CustomerAddress,
	}
	if ev.Source != "" {
		frame.Metadata = &FrameMetadata{Source: ev.Source}
	}
	return frame
}
