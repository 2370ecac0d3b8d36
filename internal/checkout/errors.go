package checkout

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a checkout failure. The two "payment captured" kinds mean
// money has moved but the order is not fully recorded; support staff must
// reconcile them.
type Kind string

const (
	KindValidation                      Kind = "validation"
	KindInsufficientStock               Kind = "insufficient_stock"
	KindPayment                         Kind = "payment"
	KindPaymentCapturedOrderNotRecorded Kind = "payment_captured_order_not_recorded"
	KindPaymentCapturedItemsNotRecorded Kind = "payment_captured_items_not_recorded"
	KindConflict                        Kind = "conflict"
	KindNotFound                        Kind = "not_found"
	KindUnavailable                     Kind = "unavailable"
)

// Shortage names a cart line that asks for more than is in stock.
type Shortage struct {
	ItemID    string `json:"itemId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

type Error struct {
	Kind           Kind
	Message        string
	Fields         map[string]string
	Shortages      []Shortage
	OrderID        string
	TransactionRef string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of a checkout error, or "" for anything else.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func shortageMessage(ss []Shortage) string {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		if s.Available <= 0 {
			parts = append(parts, s.Name+" (out of stock)")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (only %d left)", s.Name, s.Available))
	}
	return "Insufficient stock for: " + strings.Join(parts, ", ")
}

type WarningKind string

const (
	WarningStockDecrement WarningKind = "stock_decrement"
	WarningLowStock       WarningKind = "low_stock"
	WarningNotification   WarningKind = "notification"
)

// Warning reports a problem after the order was recorded. The order stands
// regardless.
type Warning struct {
	Kind      WarningKind `json:"kind"`
	ItemID    string      `json:"itemId,omitempty"`
	Message   string      `json:"message"`
	Remaining *int        `json:"remaining,omitempty"`
}
