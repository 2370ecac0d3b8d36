package order

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound             = errors.New("order not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrDuplicateOrderID     = errors.New("order id already used")
	ErrInvalidStatus        = errors.New("invalid order status")
)

// Repository persists orders and their items.
type Repository interface {
	// Create stores o without items. A second order with the same
	// TransactionRef fails with ErrDuplicateTransaction.
	Create(ctx context.Context, o Order) (Order, error)
	AddItems(ctx context.Context, orderRef int64, items []Item) ([]Item, error)
	GetByOrderID(ctx context.Context, orderID string) (Order, error)
	GetByTransactionRef(ctx context.Context, ref string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	UpdateStatus(ctx context.Context, orderID string, s Status) error
	SetPrepared(ctx context.Context, orderID string, prepared bool) error
	// WithoutItems lists orders that were stored but never got their items.
	WithoutItems(ctx context.Context) ([]Order, error)
	Counts(ctx context.Context) (Counts, error)
}

// InMemoryRepository is used for tests and for running without a database.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	nextID int64
	nextIt int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, nextIt: 1}
}

func (r *InMemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if o.TransactionRef != "" && existing.TransactionRef == o.TransactionRef {
			return Order{}, ErrDuplicateTransaction
		}
		if existing.OrderID == o.OrderID {
			return Order{}, ErrDuplicateOrderID
		}
	}
	o.ID = r.nextID
	r.nextID++
	o.Items = []Item{}
	r.orders = append(r.orders, o)
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) AddItems(_ context.Context, orderRef int64, items []Item) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID != orderRef {
			continue
		}
		out := make([]Item, len(items))
		for j, it := range items {
			it.ID = r.nextIt
			r.nextIt++
			it.OrderRef = orderRef
			out[j] = it
		}
		r.orders[i].Items = append(r.orders[i].Items, out...)
		return out, nil
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) GetByOrderID(_ context.Context, orderID string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderID == orderID {
			return cloneOrder(o), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) GetByTransactionRef(_ context.Context, ref string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.TransactionRef == ref {
			return cloneOrder(o), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) List(_ context.Context, f ListFilter) ([]Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]Order, 0)
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Email != "" && !strings.EqualFold(o.CustomerEmail, f.Email) {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.SliceStable(matched, func(a, b int) bool {
		if f.Sort == "asc" {
			return matched[a].CreatedAt.Before(matched[b].CreatedAt)
		}
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})
	total := len(matched)
	start := min(f.offset(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

func (r *InMemoryRepository) UpdateStatus(_ context.Context, orderID string, s Status) error {
	return r.update(orderID, func(o *Order) { o.Status = s })
}

func (r *InMemoryRepository) SetPrepared(_ context.Context, orderID string, prepared bool) error {
	return r.update(orderID, func(o *Order) { o.Prepared = prepared })
}

func (r *InMemoryRepository) update(orderID string, fn func(*Order)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].OrderID == orderID {
			fn(&r.orders[i])
			r.orders[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) WithoutItems(_ context.Context) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if len(o.Items) == 0 {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Counts(_ context.Context) (Counts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var c Counts
	for _, o := range r.orders {
		if o.Status == StatusPending {
			c.Pending++
		}
		if !o.Prepared && o.Status != StatusCancelled {
			c.Unprepared++
		}
	}
	return c, nil
}

func cloneOrder(o Order) Order {
	items := make([]Item, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
