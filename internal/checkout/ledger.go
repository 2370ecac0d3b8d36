package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Hazard is a reconciliation record: a payment was captured but the order
// or its items could not be stored.
type Hazard struct {
	ID             int64           `json:"id"`
	Kind           Kind            `json:"kind"`
	OrderID        string          `json:"orderId"`
	TransactionRef string          `json:"transactionRef"`
	PaymentMethod  string          `json:"paymentMethod"`
	CustomerName   string          `json:"customerName"`
	CustomerPhone  string          `json:"customerPhone"`
	CustomerEmail  string          `json:"customerEmail"`
	Amount         decimal.Decimal `json:"amount"`
	Detail         string          `json:"detail"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Ledger stores reconciliation hazards for support staff.
type Ledger interface {
	Record(ctx context.Context, h Hazard) error
	List(ctx context.Context) ([]Hazard, error)
}

type InMemoryLedger struct {
	mu      sync.RWMutex
	hazards []Hazard
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{}
}

func (l *InMemoryLedger) Record(_ context.Context, h Hazard) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	h.ID = int64(len(l.hazards) + 1)
	l.hazards = append(l.hazards, h)
	return nil
}

// List returns hazards newest first.
func (l *InMemoryLedger) List(_ context.Context) ([]Hazard, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Hazard, len(l.hazards))
	for i, h := range l.hazards {
		out[len(l.hazards)-1-i] = h
	}
	return out, nil
}
