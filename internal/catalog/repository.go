package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	GetByID(ctx context.Context, id string) (Item, error)
	// GetByIDs returns the items found among ids; missing ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Create(ctx context.Context, it Item) (Item, error)
	Update(ctx context.Context, id string, it Item) (Item, error)
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty in a single conditional step and returns
	// the remaining stock. It fails with ErrInsufficientStock rather than
	// going negative.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
}

// InMemoryRepository is used for tests and for running without a database.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage []Item
}

func NewInMemoryRepository(seed []Item) *InMemoryRepository {
	r := &InMemoryRepository{storage: make([]Item, 0, len(seed))}
	for _, it := range seed {
		r.storage = append(r.storage, cloneItem(it))
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]Item, 0, len(r.storage))
	for _, it := range r.storage {
		if f.Category != "" && it.Category != f.Category {
			continue
		}
		if f.Brand != "" && it.Brand != f.Brand {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(it.Name), q) && !strings.Contains(strings.ToLower(it.Description), q) {
			continue
		}
		out = append(out, cloneItem(it))
	}
	// newest first, id as tiebreaker so listings are stable
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, it := range r.storage {
		if it.ID == id {
			return cloneItem(it), nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *InMemoryRepository) GetByIDs(_ context.Context, ids []string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		for _, it := range r.storage {
			if it.ID == id {
				out = append(out, cloneItem(it))
				break
			}
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, it Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage = append(r.storage, cloneItem(it))
	return it, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id string, it Item) (Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			it.ID = id
			it.CreatedAt = r.storage[i].CreatedAt
			r.storage[i] = cloneItem(it)
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			r.storage = append(r.storage[:i], r.storage[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryRepository) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.storage {
		if r.storage[i].ID == id {
			if r.storage[i].Stock < qty {
				return r.storage[i].Stock, ErrInsufficientStock
			}
			r.storage[i].Stock -= qty
			return r.storage[i].Stock, nil
		}
	}
	return 0, ErrNotFound
}

func cloneItem(it Item) Item {
	if it.Images != nil {
		imgs := make([]string, len(it.Images))
		copy(imgs, it.Images)
		it.Images = imgs
	}
	return it
}
