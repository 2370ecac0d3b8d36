// Package events is a small in-process publish/subscribe bus. Producers
// publish typed events; subscribers register for one event type each.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/shopspring/decimal"
)

// OrderPlaced is published once an order and its items are stored.
type OrderPlaced struct {
	OrderID         string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ShippingAddress string
	City            string
	State           string
	Pincode         string
	PaymentMethod   string
	TransactionRef  string
	Total           decimal.Decimal
	Items           []OrderLine
}

type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LowStock is published when an item's stock drops to the threshold or below.
type LowStock struct {
	ItemID    string
	ItemName  string
	Remaining int
}

type handler func(ctx context.Context, ev any) error

// Bus delivers events synchronously in subscription order. A failing or
// panicking subscriber is logged and does not stop the others.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]namedHandler
	log      *slog.Logger
}

type namedHandler struct {
	name string
	fn   handler
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{handlers: make(map[reflect.Type][]namedHandler), log: log}
}

// Subscribe registers fn for events of type T.
func Subscribe[T any](b *Bus, name string, fn func(ctx context.Context, ev T) error) {
	key := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = append(b.handlers[key], namedHandler{
		name: name,
		fn: func(ctx context.Context, ev any) error {
			return fn(ctx, ev.(T))
		},
	})
}

// Publish delivers ev to every subscriber of T and returns how many of them
// failed.
func Publish[T any](ctx context.Context, b *Bus, ev T) int {
	key := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.RLock()
	hs := append([]namedHandler(nil), b.handlers[key]...)
	b.mu.RUnlock()

	failed := 0
	for _, h := range hs {
		if err := b.deliver(ctx, h, ev); err != nil {
			failed++
			b.log.WarnContext(ctx, "event subscriber failed",
				slog.String("event", key.String()),
				slog.String("subscriber", h.name),
				slog.Any("error", err))
		}
	}
	return failed
}

func (b *Bus) deliver(ctx context.Context, h namedHandler, ev any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.fn(ctx, ev)
}
