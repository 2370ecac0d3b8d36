// Package payment hands the money-moving part of checkout to a gateway and
// verifies what comes back before an order is recorded.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodRazorpay Method = "razorpay"
	MethodUPI      Method = "upi"
	MethodBank     Method = "bank"
)

var (
	// ErrVerification means the confirmation could not be trusted; the
	// customer may retry.
	ErrVerification      = errors.New("payment verification failed")
	ErrUnsupportedMethod = errors.New("unsupported payment method")
)

// Request describes the amount to collect for one checkout.
type Request struct {
	OrderID     string
	Method      Method
	Amount      decimal.Decimal
	Currency    string
	Description string
	Name        string
	Email       string
	Phone       string
}

// Intent is what the storefront needs to open the payment step.
type Intent struct {
	Provider        string            `json:"provider"`
	Method          Method            `json:"method"`
	ProviderOrderID string            `json:"providerOrderId,omitempty"`
	KeyID           string            `json:"keyId,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	AmountMinor     int64             `json:"amountMinor"`
	Currency        string            `json:"currency"`
	Description     string            `json:"description,omitempty"`
	Prefill         Prefill           `json:"prefill"`
	Instructions    map[string]string `json:"instructions,omitempty"`
}

type Prefill struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"contact"`
}

// Confirmation is the payload posted back after the customer paid. Razorpay
// fills the first three fields; manual transfers carry a TransactionID.
type Confirmation struct {
	ProviderOrderID string `json:"razorpay_order_id,omitempty"`
	PaymentID       string `json:"razorpay_payment_id,omitempty"`
	Signature       string `json:"razorpay_signature,omitempty"`
	TransactionID   string `json:"transactionId,omitempty"`
}

// Gateway initiates and confirms payments. Confirm returns the transaction
// reference the order is keyed on.
type Gateway interface {
	Initiate(ctx context.Context, req Request) (Intent, error)
	Confirm(ctx context.Context, in Intent, conf Confirmation) (string, error)
}

// Router dispatches to a gateway per payment method.
type Router struct {
	gateways map[Method]Gateway
}

func NewRouter() *Router {
	return &Router{gateways: make(map[Method]Gateway)}
}

// Handle registers g for the given methods, replacing earlier registrations.
func (r *Router) Handle(g Gateway, methods ...Method) *Router {
	for _, m := range methods {
		r.gateways[m] = g
	}
	return r
}

// Supports reports whether a gateway is registered for m.
func (r *Router) Supports(m Method) bool {
	_, ok := r.gateways[m]
	return ok
}

func (r *Router) Initiate(ctx context.Context, req Request) (Intent, error) {
	g, ok := r.gateways[req.Method]
	if !ok {
		return Intent{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	return g.Initiate(ctx, req)
}

func (r *Router) Confirm(ctx context.Context, in Intent, conf Confirmation) (string, error) {
	g, ok := r.gateways[in.Method]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, in.Method)
	}
	return g.Confirm(ctx, in, conf)
}

// minorUnits converts an amount to paise (or cents), rounding half away
// from zero.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
