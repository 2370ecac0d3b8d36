package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Line is what checkout hands over for each purchased item.
type Line struct {
	ItemID    string
	Name      string
	Image     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Service provides business logic for orders.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

// CreateOrder stores o keyed on its transaction reference. When that
// reference is already recorded the stored order is returned and created is
// false, so a replayed payment callback never produces a second order.
func (s *Service) CreateOrder(ctx context.Context, o Order) (stored Order, created bool, err error) {
	if strings.TrimSpace(o.TransactionRef) == "" {
		return Order{}, false, errors.New("transaction reference is required")
	}
	if o.Status == "" {
		o.Status = StatusConfirmed
	}
	if !o.Status.Valid() {
		return Order{}, false, ErrInvalidStatus
	}
	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	stored, err = s.repo.Create(ctx, o)
	if errors.Is(err, ErrDuplicateTransaction) {
		existing, getErr := s.repo.GetByTransactionRef(ctx, o.TransactionRef)
		if getErr != nil {
			return Order{}, false, fmt.Errorf("load order for transaction %s: %w", o.TransactionRef, getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return stored, true, nil
}

// AddItems records the purchased lines against an order, computing each
// line total from unit price and quantity.
func (s *Service) AddItems(ctx context.Context, orderRef int64, lines []Line) ([]Item, error) {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			OrderRef:  orderRef,
			ItemID:    l.ItemID,
			ItemName:  l.Name,
			ItemImage: l.Image,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}
	return s.repo.AddItems(ctx, orderRef, items)
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	f = f.normalize()
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Orders: orders, Metadata: newMetadata(f, total)}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, orderID string, st Status) (Order, error) {
	if !st.Valid() {
		return Order{}, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, orderID, st); err != nil {
		return Order{}, err
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *Service) SetPrepared(ctx context.Context, orderID string, prepared bool) (Order, error) {
	if err := s.repo.SetPrepared(ctx, orderID, prepared); err != nil {
		return Order{}, err
	}
	return s.repo.GetByOrderID(ctx, orderID)
}

// WithoutItems lists orders that need manual reconciliation.
func (s *Service) WithoutItems(ctx context.Context) ([]Order, error) {
	return s.repo.WithoutItems(ctx)
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	return s.repo.Counts(ctx)
}
