package cart

import (
	"context"
	"time"

	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

// ItemSource looks up the catalog item whose snapshot goes into a new line.
type ItemSource interface {
	GetByID(ctx context.Context, id string) (catalog.Item, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo  Repository
	items ItemSource
	now   func() time.Time
}

func NewService(repo Repository, items ItemSource) *Service {
	return &Service{repo: repo, items: items, now: time.Now}
}

func (s *Service) Create() Cart {
	return s.repo.Create(s.now())
}

func (s *Service) Get(id string) (Cart, error) {
	return s.repo.Get(id)
}

// Add puts qty units of an item in the cart. Stock is deliberately not
// checked here; checkout re-validates against the store.
func (s *Service) Add(ctx context.Context, cartID, itemID string, qty int) (Cart, error) {
	if qty < 1 {
		return Cart{}, ErrInvalidQuantity
	}
	if _, err := s.repo.Get(cartID); err != nil {
		return Cart{}, err
	}
	it, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return Cart{}, err
	}
	line := Line{ItemID: it.ID, Name: it.Name, Price: it.Price, Image: it.PrimaryImage(), Quantity: qty}
	return s.repo.Mutate(cartID, s.now(), func(c *Cart) { c.Add(line) })
}

func (s *Service) UpdateQuantity(cartID, itemID string, qty int) (Cart, error) {
	return s.repo.Mutate(cartID, s.now(), func(c *Cart) { c.UpdateQuantity(itemID, qty) })
}

func (s *Service) Remove(cartID, itemID string) (Cart, error) {
	return s.repo.Mutate(cartID, s.now(), func(c *Cart) { c.Remove(itemID) })
}

// Settle removes the paid lines once checkout records the order.
func (s *Service) Settle(cartID string, paid []Line) error {
	_, err := s.repo.Mutate(cartID, s.now(), func(c *Cart) { c.Deduct(paid) })
	return err
}

// PruneIdle forgets carts idle for longer than ttl.
func (s *Service) PruneIdle(ttl time.Duration) int {
	return s.repo.PruneIdle(s.now().Add(-ttl))
}
