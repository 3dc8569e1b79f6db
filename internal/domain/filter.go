package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// activeFilter is the status filter value selecting every non-terminal order.
const activeFilter = "active"

const dateLayout = "2006-01-02"

// OrderFilter narrows a read view. Zero fields match everything.
type OrderFilter struct {
	Status          Status
	Active          bool
	Merchant        string
	CustomerContact string
	CreatedFrom     time.Time
	CreatedTo       time.Time
	Search          string
}

// ParseStatusFilter reads a status query value. "active" selects the
// non-terminal statuses instead of a single one.
func ParseStatusFilter(s string) (status Status, active bool) {
	status = ParseStatus(s)
	if status == activeFilter {
		return "", true
	}
	return status, false
}

// ParseCreatedBound reads a created-from/to value, either a YYYY-MM-DD date or
// an RFC 3339 timestamp. A date used as an upper bound covers the whole day.
func ParseCreatedBound(s string, upper bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.Parse(dateLayout, s); err == nil {
		if upper {
			return d.Add(24*time.Hour - time.Nanosecond), nil
		}
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC 3339 timestamp, got %q", s)
	}
	return t.UTC(), nil
}

func (f OrderFilter) Matches(o Order) bool {
	if f.Status != "" && o.CurrentStatus != f.Status {
		return false
	}
	if f.Active && o.CurrentStatus.IsTerminal() {
		return false
	}
	if f.Merchant != "" && !strings.EqualFold(o.MerchantName, f.Merchant) {
		return false
	}
	if c := strings.TrimSpace(f.CustomerContact); c != "" && o.CustomerContact != c {
		return false
	}
	if !f.CreatedFrom.IsZero() && o.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && o.CreatedAt.After(f.CreatedTo) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		return strings.Contains(strings.ToLower(o.OrderID), q) ||
			strings.Contains(strings.ToLower(o.CustomerName), q) ||
			strings.Contains(strings.ToLower(o.ProductName), q)
	}
	return true
}

// StatusGroup is one column of the status board.
type StatusGroup struct {
	Status Status
	Orders []Order
}

// SortByNewest orders most recently created first, ties broken by id.
func SortByNewest(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].OrderID < orders[j].OrderID
	})
}

// GroupByStatus buckets orders in the order of known. Every known status gets
// a group, possibly empty; orders outside known are collected after them.
func GroupByStatus(orders []Order, known StatusSet) []StatusGroup {
	groups := make([]StatusGroup, 0, known.Len())
	index := make(map[Status]int, known.Len())
	for _, st := range known.List() {
		index[st] = len(groups)
		groups = append(groups, StatusGroup{Status: st, Orders: []Order{}})
	}

	for _, o := range orders {
		i, ok := index[o.CurrentStatus]
		if !ok {
			i = len(groups)
			index[o.CurrentStatus] = i
			groups = append(groups, StatusGroup{Status: o.CurrentStatus, Orders: []Order{}})
		}
		groups[i].Orders = append(groups[i].Orders, o)
	}

	for i := range groups {
		SortByNewest(groups[i].Orders)
	}
	return groups
}
