package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Repository keeps session carts. Carts live only as long as the process;
// they are not written to the catalog store.
type Repository interface {
	Create(now time.Time) Cart
	Get(id string) (Cart, error)
	// Mutate applies fn to the cart under the repository lock and returns
	// the resulting copy.
	Mutate(id string, now time.Time, fn func(*Cart)) (Cart, error)
	PruneIdle(before time.Time) int
}

// InMemoryRepository is the only cart store.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[string]*Cart)}
}

func (r *InMemoryRepository) Create(now time.Time) Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Cart{ID: uuid.NewString(), Lines: []Line{}, UpdatedAt: now}
	r.carts[c.ID] = c
	return c.clone()
}

func (r *InMemoryRepository) Get(id string) (Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return c.clone(), nil
}

func (r *InMemoryRepository) Mutate(id string, now time.Time, fn func(*Cart)) (Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return Cart{}, ErrNotFound
	}
	fn(c)
	c.UpdatedAt = now
	return c.clone(), nil
}

// PruneIdle drops carts untouched since before and returns how many went.
func (r *InMemoryRepository) PruneIdle(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, c := range r.carts {
		if c.UpdatedAt.Before(before) {
			delete(r.carts, id)
			n++
		}
	}
	return n
}
