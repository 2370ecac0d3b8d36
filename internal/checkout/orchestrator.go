// Package checkout turns a cart into a paid, recorded order: it checks
// stock, hands the amount to a payment gateway, persists the order and its
// items, adjusts inventory and notifies the customer.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/perfume-shop-backend/internal/cart"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"github.com/wichananm65/perfume-shop-backend/internal/events"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
	"github.com/wichananm65/perfume-shop-backend/internal/payment"
)

type Carts interface {
	Get(id string) (cart.Cart, error)
	// Settle takes the paid lines out of the cart, leaving anything added
	// after checkout began.
	Settle(id string, paid []cart.Line) error
}

type Inventory interface {
	StockLevels(ctx context.Context, ids []string) (map[string]catalog.Item, error)
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error)
	AddItems(ctx context.Context, orderRef int64, lines []order.Line) ([]order.Item, error)
}

type Gateway interface {
	payment.Gateway
	Supports(m payment.Method) bool
}

type Notifier interface {
	OrderPlaced(ctx context.Context, ev events.OrderPlaced) error
}

type Options struct {
	Shipping          decimal.Decimal
	LowStockThreshold int
	Currency          string
	NotifyTimeout     time.Duration
	Logger            *slog.Logger
}

type Orchestrator struct {
	carts     Carts
	inventory Inventory
	orders    Orders
	gateway   Gateway
	notifier  Notifier
	bus       *events.Bus
	ledger    Ledger
	opts      Options
	log       *slog.Logger
	validate  *validator.Validate
	sessions  *sessionStore
	ids       orderIDs
	now       func() time.Time
}

func NewOrchestrator(carts Carts, inventory Inventory, orders Orders, gateway Gateway,
	notifier Notifier, bus *events.Bus, ledger Ledger, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &Orchestrator{
		carts:     carts,
		inventory: inventory,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
		bus:       bus,
		ledger:    ledger,
		opts:      opts,
		log:       opts.Logger,
		validate:  newValidator(),
		sessions:  newSessionStore(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Quote is the price breakdown shown before checkout.
type Quote struct {
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

func (o *Orchestrator) Quote(_ context.Context, cartID string) (Quote, error) {
	c, err := o.carts.Get(cartID)
	if err != nil {
		return Quote{}, o.cartError(err)
	}
	return o.quote(c), nil
}

func (o *Orchestrator) quote(c cart.Cart) Quote {
	shipping := decimal.Zero
	if !c.Empty() {
		shipping = o.opts.Shipping
	}
	sub := c.Total()
	return Quote{Count: c.Count(), Subtotal: sub, Shipping: shipping, Total: sub.Add(shipping)}
}

func (o *Orchestrator) cartError(err error) error {
	if errors.Is(err, cart.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: "Cart not found", Err: err}
	}
	return err
}

// Begin validates the cart and customer details, re-checks stock against
// the store and initiates payment. Nothing is persisted.
func (o *Orchestrator) Begin(ctx context.Context, cartID string, details CustomerDetails, method payment.Method) (Session, error) {
	c, err := o.carts.Get(cartID)
	if err != nil {
		return Session{}, o.cartError(err)
	}
	if c.Empty() {
		return Session{}, &Error{Kind: KindValidation, Message: "Your cart is empty"}
	}
	for _, l := range c.Lines {
		if l.Quantity < 1 {
			return Session{}, &Error{Kind: KindValidation, Message: fmt.Sprintf("Quantity for %s must be at least 1", l.Name)}
		}
	}

	details, fields, err := validateDetails(o.validate, details)
	if err != nil {
		return Session{}, err
	}
	if !o.gateway.Supports(method) {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["paymentMethod"] = "Payment method is not available"
	}
	if len(fields) > 0 {
		return Session{}, &Error{Kind: KindValidation, Message: "Please correct the highlighted fields", Fields: fields}
	}

	if err := o.checkStock(ctx, c.Lines); err != nil {
		return Session{}, err
	}

	now := o.now()
	q := o.quote(c)
	sess := Session{
		ID:        uuid.NewString(),
		CartID:    cartID,
		OrderID:   o.ids.next(now),
		Details:   details,
		Method:    method,
		Lines:     c.Lines,
		Subtotal:  q.Subtotal,
		Shipping:  q.Shipping,
		Total:     q.Total,
		State:     StateAwaitingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	intent, err := o.gateway.Initiate(ctx, payment.Request{
		OrderID:     sess.OrderID,
		Method:      method,
		Amount:      sess.Total,
		Currency:    o.opts.Currency,
		Description: fmt.Sprintf("Order %s", sess.OrderID),
		Name:        details.FullName,
		Email:       details.Email,
		Phone:       details.Phone,
	})
	if err != nil {
		o.log.WarnContext(ctx, "payment initiation failed", slog.String("order_id", sess.OrderID), slog.Any("error", err))
		return Session{}, &Error{Kind: KindPayment, Message: "Could not start payment, please try again", OrderID: sess.OrderID, Err: err}
	}
	sess.Intent = intent
	o.sessions.put(&sess)
	return sess, nil
}

// checkStock reads current stock for every line straight from the store
// and reports every line that cannot be filled.
func (o *Orchestrator) checkStock(ctx context.Context, lines []cart.Line) error {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	levels, err := o.inventory.StockLevels(ctx, ids)
	if err != nil {
		o.log.ErrorContext(ctx, "could not read stock levels", slog.Any("items", ids), slog.Any("error", err))
		return &Error{Kind: KindUnavailable, Message: "We could not check stock right now, please try again shortly", Err: err}
	}
	var short []Shortage
	for _, l := range lines {
		it, ok := levels[l.ItemID]
		if !ok {
			short = append(short, Shortage{ItemID: l.ItemID, Name: l.Name, Requested: l.Quantity})
			continue
		}
		if l.Quantity > it.Stock {
			short = append(short, Shortage{ItemID: l.ItemID, Name: it.Name, Requested: l.Quantity, Available: it.Stock})
		}
	}
	if len(short) > 0 {
		return &Error{Kind: KindInsufficientStock, Message: shortageMessage(short), Shortages: short}
	}
	return nil
}

// Lookup returns a snapshot of a checkout session.
func (o *Orchestrator) Lookup(id string) (Session, error) {
	sess, ok := o.sessions.get(id)
	if !ok {
		return Session{}, &Error{Kind: KindNotFound, Message: "Checkout session not found"}
	}
	return sess, nil
}

// Dismiss records that the customer closed the payment step.
func (o *Orchestrator) Dismiss(_ context.Context, sessionID string) (Session, error) {
	return o.sessions.transition(sessionID, StateDismissed, "", o.now())
}

// Fail records a payment failure reported by the gateway widget.
func (o *Orchestrator) Fail(ctx context.Context, sessionID, reason string) (Session, error) {
	sess, err := o.sessions.transition(sessionID, StateFailed, reason, o.now())
	if err == nil {
		o.log.InfoContext(ctx, "payment failed", slog.String("order_id", sess.OrderID), slog.String("reason", reason))
	}
	return sess, err
}

// PruneSessions forgets sessions idle for longer than ttl.
func (o *Orchestrator) PruneSessions(ttl time.Duration) int {
	return o.sessions.prune(o.now().Add(-ttl))
}

// Complete verifies the payment confirmation and records the order. Only one
// completion runs per session at a time; a completed session answers with
// its stored result. If recording fails after the payment was verified the
// session returns to awaiting_payment, and calling Complete again with the
// same confirmation resumes where it stopped. Once the order header is
// stored, a retry that confirms a different payment is a conflict.
func (o *Orchestrator) Complete(ctx context.Context, sessionID string, conf payment.Confirmation) (*Result, error) {
	sess, done, err := o.sessions.claim(sessionID, o.now())
	if err != nil {
		return nil, err
	}
	if done != nil {
		return done, nil
	}

	ref, err := o.gateway.Confirm(ctx, sess.Intent, conf)
	if err != nil {
		o.sessions.release(sessionID, o.now())
		o.log.WarnContext(ctx, "payment confirmation rejected", slog.String("order_id", sess.OrderID), slog.Any("error", err))
		return nil, &Error{Kind: KindPayment, Message: "Payment could not be verified, please try again", OrderID: sess.OrderID, Err: err}
	}
	if sess.TransactionRef != "" && ref != sess.TransactionRef {
		o.sessions.release(sessionID, o.now())
		o.log.WarnContext(ctx, "confirmation does not match recorded payment",
			slog.String("order_id", sess.OrderID),
			slog.String("transaction_ref", ref),
			slog.String("recorded_ref", sess.TransactionRef))
		return nil, &Error{
			Kind:           KindConflict,
			Message:        "Order " + sess.OrderID + " was already paid with transaction id " + sess.TransactionRef + ". Please submit that id to finish it.",
			OrderID:        sess.OrderID,
			TransactionRef: sess.TransactionRef,
		}
	}

	res, err := o.record(ctx, sess, ref)
	if err != nil {
		o.sessions.release(sessionID, o.now())
		return nil, err
	}
	o.sessions.complete(sessionID, res, o.now())
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, sess Session, ref string) (*Result, error) {
	d := sess.Details
	stored, created, err := o.orders.CreateOrder(ctx, order.Order{
		OrderID:         sess.OrderID,
		CustomerName:    d.FullName,
		CustomerPhone:   d.Phone,
		CustomerEmail:   d.Email,
		ShippingAddress: d.Address,
		City:            d.City,
		State:           d.State,
		Pincode:         d.Pincode,
		TotalAmount:     sess.Total,
		PaymentMethod:   string(sess.Method),
		TransactionRef:  ref,
		Status:          order.StatusConfirmed,
	})
	if err != nil {
		return nil, o.hazard(ctx, KindPaymentCapturedOrderNotRecorded, sess, ref,
			"Payment received but your order could not be recorded. Please contact support with your transaction id.", err)
	}
	if !created && stored.OrderID != sess.OrderID {
		return nil, &Error{
			Kind:           KindConflict,
			Message:        "This transaction id has already been used for another order",
			OrderID:        stored.OrderID,
			TransactionRef: ref,
		}
	}
	o.sessions.recorded(sess.ID, ref, o.now())

	// A resumed completion finds the items already stored; inventory was
	// adjusted in the same earlier attempt.
	resumedComplete := !created && len(stored.Items) > 0
	if !resumedComplete {
		lines := make([]order.Line, len(sess.Lines))
		for i, l := range sess.Lines {
			lines[i] = order.Line{ItemID: l.ItemID, Name: l.Name, Image: l.Image, Quantity: l.Quantity, UnitPrice: l.Price}
		}
		items, err := o.orders.AddItems(ctx, stored.ID, lines)
		if err != nil {
			return nil, o.hazard(ctx, KindPaymentCapturedItemsNotRecorded, sess, ref,
				"Payment received and order "+sess.OrderID+" created, but its items could not be recorded. Please contact support.", err)
		}
		stored.Items = items
	}

	var warnings []Warning
	if !resumedComplete {
		warnings = append(warnings, o.adjustStock(ctx, sess)...)
	}
	warnings = append(warnings, o.notify(ctx, sess, stored)...)

	if err := o.carts.Settle(sess.CartID, sess.Lines); err != nil {
		o.log.WarnContext(ctx, "could not settle cart", slog.String("cart_id", sess.CartID), slog.Any("error", err))
	}
	if warnings == nil {
		warnings = []Warning{}
	}
	return &Result{Order: stored, CustomerPhone: d.Phone, Warnings: warnings}, nil
}

// hazard logs and records a captured-payment failure, then builds the error
// returned to the customer.
func (o *Orchestrator) hazard(ctx context.Context, kind Kind, sess Session, ref, msg string, cause error) error {
	d := sess.Details
	o.log.ErrorContext(ctx, "payment captured but order not fully recorded",
		slog.String("kind", string(kind)),
		slog.String("transaction_ref", ref),
		slog.String("order_id", sess.OrderID),
		slog.String("customer_phone", d.Phone),
		slog.String("customer_email", d.Email),
		slog.String("amount", sess.Total.String()),
		slog.Any("error", cause))
	if o.ledger != nil {
		err := o.ledger.Record(ctx, Hazard{
			Kind:           kind,
			OrderID:        sess.OrderID,
			TransactionRef: ref,
			PaymentMethod:  string(sess.Method),
			CustomerName:   d.FullName,
			CustomerPhone:  d.Phone,
			CustomerEmail:  d.Email,
			Amount:         sess.Total,
			Detail:         cause.Error(),
			CreatedAt:      o.now(),
		})
		if err != nil {
			o.log.ErrorContext(ctx, "could not write reconciliation record",
				slog.String("transaction_ref", ref), slog.Any("error", err))
		}
	}
	return &Error{Kind: kind, Message: msg, OrderID: sess.OrderID, TransactionRef: ref, Err: cause}
}

func (o *Orchestrator) adjustStock(ctx context.Context, sess Session) []Warning {
	var warnings []Warning
	decremented := make([]string, 0, len(sess.Lines))
	for _, l := range sess.Lines {
		if _, err := o.inventory.DecrementStock(ctx, l.ItemID, l.Quantity); err != nil {
			o.log.ErrorContext(ctx, "stock decrement failed",
				slog.String("order_id", sess.OrderID),
				slog.String("item_id", l.ItemID),
				slog.Int("quantity", l.Quantity),
				slog.Any("error", err))
			warnings = append(warnings, Warning{
				Kind:    WarningStockDecrement,
				ItemID:  l.ItemID,
				Message: fmt.Sprintf("Stock for %s could not be updated", l.Name),
			})
			continue
		}
		decremented = append(decremented, l.ItemID)
	}
	if len(decremented) == 0 {
		return warnings
	}

	levels, err := o.inventory.StockLevels(ctx, decremented)
	if err != nil {
		o.log.WarnContext(ctx, "could not re-read stock", slog.String("order_id", sess.OrderID), slog.Any("error", err))
		return warnings
	}
	for _, id := range decremented {
		it, ok := levels[id]
		if !ok || it.Stock > o.opts.LowStockThreshold {
			continue
		}
		remaining := it.Stock
		warnings = append(warnings, Warning{
			Kind:      WarningLowStock,
			ItemID:    id,
			Message:   fmt.Sprintf("%s is low on stock (%d left)", it.Name, remaining),
			Remaining: &remaining,
		})
		if o.bus != nil {
			events.Publish(ctx, o.bus, events.LowStock{ItemID: id, ItemName: it.Name, Remaining: remaining})
		}
	}
	return warnings
}

func (o *Orchestrator) notify(ctx context.Context, sess Session, stored order.Order) []Warning {
	d := sess.Details
	lines := make([]events.OrderLine, len(sess.Lines))
	for i, l := range sess.Lines {
		lines[i] = events.OrderLine{Name: l.Name, Quantity: l.Quantity, UnitPrice: l.Price}
	}
	ev := events.OrderPlaced{
		OrderID:         stored.OrderID,
		CustomerName:    d.FullName,
		CustomerPhone:   d.Phone,
		CustomerEmail:   d.Email,
		ShippingAddress: d.Address,
		City:            d.City,
		State:           d.State,
		Pincode:         d.Pincode,
		PaymentMethod:   stored.PaymentMethod,
		TransactionRef:  stored.TransactionRef,
		Total:           stored.TotalAmount,
		Items:           lines,
	}

	var warnings []Warning
	if o.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
		err := o.notifier.OrderPlaced(nctx, ev)
		cancel()
		if err != nil {
			o.log.WarnContext(ctx, "order notification failed", slog.String("order_id", stored.OrderID), slog.Any("error", err))
			warnings = append(warnings, Warning{Kind: WarningNotification, Message: "Order placed but notification failed"})
		}
	}
	if o.bus != nil {
		events.Publish(ctx, o.bus, ev)
	}
	return warnings
}
