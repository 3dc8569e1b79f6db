package repository

import (
	"fmt"
	"sort"
	"sync"

	"ordertrack/internal/domain"
	"ordertrack/internal/errors"
)

// Entry is a stored order and the collection version of its last write.
type Entry struct {
	Order   domain.Order
	Version uint64
}

// MemoryOrderRepository is the canonical order collection. Every
// read-modify-write runs under one write lock.
type MemoryOrderRepository struct {
	mu      sync.RWMutex
	orders  map[string]Entry
	version uint64
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]Entry)}
}

func (r *MemoryOrderRepository) FindByID(orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.orders[orderID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID))
	}
	o := e.Order
	return &o, nil
}

// List returns a copy of every order, ordered by id.
func (r *MemoryOrderRepository) List() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, e := range r.orders {
		out = append(out, e.Order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out
}

func (r *MemoryOrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// Version is incremented on every write.
func (r *MemoryOrderRepository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Upsert passes the current order (nil if absent) to fn and stores its
// result when fn reports a write. It returns the order held afterwards.
func (r *MemoryOrderRepository) Upsert(orderID string, fn func(existing *domain.Order) (domain.Order, bool)) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing *domain.Order
	if e, ok := r.orders[orderID]; ok {
		o := e.Order
		existing = &o
	}

	next, write := fn(existing)
	if !write {
		if existing != nil {
			return *existing
		}
		return next
	}

	r.version++
	r.orders[orderID] = Entry{Order: next, Version: r.version}
	return next
}

// Replace swaps the whole collection. fn receives the current entries and
// returns the new membership. Orders that differ from the stored value get a
// new version, the rest keep theirs.
func (r *MemoryOrderRepository) Replace(fn func(current map[string]Entry) []domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := make(map[string]Entry, len(r.orders))
	for id, e := range r.orders {
		current[id] = e
	}

	next := make(map[string]Entry, len(current))
	for _, o := range fn(current) {
		if e, ok := current[o.OrderID]; ok && e.Order == o {
			next[o.OrderID] = e
			continue
		}
		r.version++
		next[o.OrderID] = Entry{Order: o, Version: r.version}
	}
	r.orders = next
}

func (r *MemoryOrderRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = make(map[string]Entry)
	r.version++
}
