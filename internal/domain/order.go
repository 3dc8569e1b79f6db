package domain

import (
	"strings"
	"time"
)

type Order struct {
	OrderID         string
	ProductName     string
	CustomerName    string
	CustomerContact string
	CustomerAddress string
	MerchantName    string
	CurrentStatus   Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PlaceholderContact fills the contact of an order first seen through the
// stream, where the frame does not carry one.
const PlaceholderContact = "-"

type Status string

const (
	StatusCreated   Status = "created"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

// IsTerminal reports whether no further transition is expected. The engine
// still accepts one if the remote sends it.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func DefaultStatuses() []Status {
	return []Status{StatusCreated, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled}
}

// StatusSet is the authoritative status enum as last reported by the remote.
type StatusSet struct {
	ordered []Status
	index   map[Status]struct{}
}

func NewStatusSet(statuses ...Status) StatusSet {
	set := StatusSet{index: make(map[Status]struct{}, len(statuses))}
	for _, s := range statuses {
		s = ParseStatus(string(s))
		if s == "" {
			continue
		}
		if _, ok := set.index[s]; ok {
			continue
		}
		set.index[s] = struct{}{}
		set.ordered = append(set.ordered, s)
	}
	return set
}

func (s StatusSet) Contains(status Status) bool {
	_, ok := s.index[status]
	return ok
}

func (s StatusSet) List() []Status {
	out := make([]Status, len(s.ordered))
	copy(out, s.ordered)
	return out
}

func (s StatusSet) Len() int {
	return len(s.ordered)
}

type HistoryEntry struct {
	Status    Status
	UpdatedBy string
	Timestamp time.Time
}

type CreateOrderInput struct {
	OrderID         string
	ProductName     string
	CustomerName    string
	CustomerContact string
	CustomerAddress string
}
