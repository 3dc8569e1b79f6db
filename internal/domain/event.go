package domain

import (
	"fmt"
	"time"

	apperrors "ordertrack/internal/errors"
)

// StatusEvent is one pushed transition notification. A zero Timestamp means
// the frame did not carry one. The optional order attributes are only used
// when the event announces an order the client has not seen yet.
type StatusEvent struct {
	OrderID   string
	NewStatus Status
	Timestamp time.Time
	UpdatedBy string
	Source    string

	MerchantName    string
	ProductName     string
	CustomerName    string
	CustomerContact string
	CustomerAddress string
}

// Validate rejects events that cannot be merged. Failures are protocol
// violations, not business errors.
func (e StatusEvent) Validate(known StatusSet) error {
	if e.OrderID == "" {
		return apperrors.NewProtocolError("event missing order_id", nil)
	}
	if e.NewStatus == "" {
		return apperrors.NewProtocolError(fmt.Sprintf("event for order %s missing status", e.OrderID), nil)
	}
	if known.Len() > 0 && !known.Contains(e.NewStatus) {
		return apperrors.NewProtocolError(fmt.Sprintf("event for order %s has unknown status %q", e.OrderID, e.NewStatus), nil)
	}
	return nil
}

type MergeOutcome int

const (
	MergeInserted MergeOutcome = iota
	MergeUpdated
	MergeUnchanged
	MergeStale
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeInserted:
		return "inserted"
	case MergeUpdated:
		return "updated"
	case MergeUnchanged:
		return "unchanged"
	case MergeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// MergeEvent folds ev into existing (nil when the order is unknown) and
// returns the resulting order. Only CurrentStatus and UpdatedAt of a known
// order change. An event strictly older than the local UpdatedAt is stale and
// leaves the order as is. Applying the same event twice is a no-op the second
// time.
func MergeEvent(existing *Order, ev StatusEvent) (Order, MergeOutcome) {
	if existing == nil {
		contact := ev.CustomerContact
		if contact == "" {
			contact = PlaceholderContact
		}
		return Order{
			OrderID:         ev.OrderID,
			ProductName:     ev.ProductName,
			CustomerName:    ev.CustomerName,
			CustomerContact: contact,
			CustomerAddress: ev.CustomerAddress,
			MerchantName:    ev.MerchantName,
			CurrentStatus:   ev.NewStatus,
			CreatedAt:       ev.Timestamp,
			UpdatedAt:       ev.Timestamp,
		}, MergeInserted
	}

	if !ev.Timestamp.IsZero() && ev.Timestamp.Before(existing.UpdatedAt) {
		return *existing, MergeStale
	}

	next := *existing
	next.CurrentStatus = ev.NewStatus
	if !ev.Timestamp.IsZero() {
		next.UpdatedAt = ev.Timestamp
	}

	if next.CurrentStatus == existing.CurrentStatus && next.UpdatedAt.Equal(existing.UpdatedAt) {
		return *existing, MergeUnchanged
	}
	return next, MergeUpdated
}

// MergeOrder reconciles a full order received from the remote (snapshot,
// detail fetch or command result) with the local copy. The newer UpdatedAt
// wins; immutable attributes missing on the winner are taken from the other
// side, since list responses only carry a subset of fields.
func MergeOrder(local *Order, remote Order) (Order, MergeOutcome) {
	if local == nil {
		return remote, MergeInserted
	}

	if local.UpdatedAt.After(remote.UpdatedAt) {
		return fillImmutable(*local, remote), MergeStale
	}

	merged := fillImmutable(remote, *local)
	if merged.CurrentStatus == local.CurrentStatus &&
		merged.UpdatedAt.Equal(local.UpdatedAt) &&
		sameImmutable(merged, *local) {
		return *local, MergeUnchanged
	}
	return merged, MergeUpdated
}

func fillImmutable(dst, src Order) Order {
	if dst.ProductName == "" {
		dst.ProductName = src.ProductName
	}
	if dst.CustomerName == "" {
		dst.CustomerName = src.CustomerName
	}
	if dst.CustomerContact == "" || (dst.CustomerContact == PlaceholderContact && src.CustomerContact != "") {
		dst.CustomerContact = src.CustomerContact
	}
	if dst.CustomerAddress == "" {
		dst.CustomerAddress = src.CustomerAddress
	}
	if dst.MerchantName == "" {
		dst.MerchantName = src.MerchantName
	}
	if dst.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	return dst
}

func sameImmutable(a, b Order) bool {
	return a.OrderID == b.OrderID &&
		a.ProductName == b.ProductName &&
		a.CustomerName == b.CustomerName &&
		a.CustomerContact == b.CustomerContact &&
		a.CustomerAddress == b.CustomerAddress &&
		a.MerchantName == b.MerchantName &&
		a.CreatedAt.Equal(b.CreatedAt)
}
