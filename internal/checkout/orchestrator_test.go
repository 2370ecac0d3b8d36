package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/perfume-shop-backend/internal/cart"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"github.com/wichananm65/perfume-shop-backend/internal/events"
	"github.com/wichananm65/perfume-shop-backend/internal/notify"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
	"github.com/wichananm65/perfume-shop-backend/internal/payment"
)

type recordingNotifier struct {
	sent []events.OrderPlaced
	err  error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, ev events.OrderPlaced) error {
	n.sent = append(n.sent, ev)
	return n.err
}

// flakyOrders fails the first N calls of each step before delegating.
type flakyOrders struct {
	*order.Service
	failCreate int
	failItems  int
}

func (f *flakyOrders) CreateOrder(ctx context.Context, o order.Order) (order.Order, bool, error) {
	if f.failCreate > 0 {
		f.failCreate--
		return order.Order{}, false, errors.New("connection refused")
	}
	return f.Service.CreateOrder(ctx, o)
}

func (f *flakyOrders) AddItems(ctx context.Context, ref int64, lines []order.Line) ([]order.Item, error) {
	if f.failItems > 0 {
		f.failItems--
		return nil, errors.New("connection reset")
	}
	return f.Service.AddItems(ctx, ref, lines)
}

type brokenDecrement struct {
	*catalog.Service
}

func (brokenDecrement) DecrementStock(context.Context, string, int) (int, error) {
	return 0, errors.New("timeout")
}

type brokenStockLevels struct {
	*catalog.Service
}

func (brokenStockLevels) StockLevels(context.Context, []string) (map[string]catalog.Item, error) {
	return nil, errors.New("pq: connection refused on 10.0.0.12:5432")
}

type fixture struct {
	orch     *Orchestrator
	bus      *events.Bus
	carts    *cart.Service
	catalog  *catalog.Service
	orders   *order.Service
	flaky    *flakyOrders
	notifier *recordingNotifier
	ledger   *InMemoryLedger
	lowStock []events.LowStock
	placed   []events.OrderPlaced
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items := catalog.NewInMemoryRepository([]catalog.Item{
		{ID: "a", Name: "Royal Oud", Price: decimal.NewFromInt(500), Category: "Oud", Stock: 5, Images: []string{"a.jpg"}},
		{ID: "b", Name: "Rose Petal", Price: decimal.NewFromInt(1000), Category: "Rose", Stock: 2},
		{ID: "c", Name: "White Musk", Price: decimal.NewFromInt(300), Category: "Musk", Stock: 40},
	})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		catalog:  catalog.NewService(items),
		carts:    cart.NewService(cart.NewInMemoryRepository(), items),
		orders:   order.NewService(order.NewInMemoryRepository()),
		notifier: &recordingNotifier{},
		ledger:   NewInMemoryLedger(),
	}
	f.flaky = &flakyOrders{Service: f.orders}
	bus := events.NewBus(log)
	f.bus = bus
	events.Subscribe(bus, "test.low_stock", func(_ context.Context, ev events.LowStock) error {
		f.lowStock = append(f.lowStock, ev)
		return nil
	})
	events.Subscribe(bus, "test.placed", func(_ context.Context, ev events.OrderPlaced) error {
		f.placed = append(f.placed, ev)
		return nil
	})
	gateway := payment.NewRouter().Handle(payment.NewManual(payment.Instructions{UPIID: "shop@upi"}), payment.MethodUPI, payment.MethodBank)
	f.orch = NewOrchestrator(f.carts, f.catalog, f.flaky, gateway, f.notifier, bus, f.ledger, Options{
		Shipping:          decimal.NewFromInt(50),
		LowStockThreshold: 5,
		Logger:            log,
	})
	return f
}

func (f *fixture) cartWith(t *testing.T, lines map[string]int) string {
	t.Helper()
	c := f.carts.Create()
	for _, id := range []string{"a", "b", "c"} {
		if qty, ok := lines[id]; ok {
			_, err := f.carts.Add(context.Background(), c.ID, id, qty)
			require.NoError(t, err)
		}
	}
	return c.ID
}

func validDetails() CustomerDetails {
	return CustomerDetails{
		FullName: "Asha Rao",
		Phone:    "9876543210",
		Email:    "asha@example.com",
		Address:  "12 MG Road",
		City:     "Pune",
		State:    "Maharashtra",
		Pincode:  "411001",
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	it, err := f.catalog.GetByID(context.Background(), id)
	require.NoError(t, err)
	return it.Stock
}

func TestComplete_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, map[string]int{"a": 2})

	sess, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	assert.Equal(t, "1050", sess.Total.String())
	assert.Equal(t, StateAwaitingPayment, sess.State)
	assert.Equal(t, "shop@upi", sess.Intent.Instructions["upiId"])
	assert.Regexp(t, `^SS\d{8}$`, sess.OrderID)

	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR1"})
	require.NoError(t, err)
	assert.Equal(t, "1050", res.Order.TotalAmount.String())
	assert.Equal(t, order.StatusConfirmed, res.Order.Status)
	assert.Equal(t, "UTR1", res.Order.TransactionRef)
	assert.Equal(t, "9876543210", res.CustomerPhone)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, "1000", res.Order.Items[0].LineTotal.String())

	assert.Equal(t, 3, f.stock(t, "a"))
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarningLowStock, res.Warnings[0].Kind)
	assert.Equal(t, 3, *res.Warnings[0].Remaining)
	require.Len(t, f.lowStock, 1)
	assert.Equal(t, "a", f.lowStock[0].ItemID)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, sess.OrderID, f.notifier.sent[0].OrderID)
	require.Len(t, f.placed, 1)

	c, err := f.carts.Get(cartID)
	require.NoError(t, err)
	assert.True(t, c.Empty())

	got, err := f.orch.Lookup(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, got.State)
}

func TestBegin_InsufficientStockBlocksPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, map[string]int{"b": 3, "c": 1})

	_, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindInsufficientStock, ce.Kind)
	require.Len(t, ce.Shortages, 1)
	assert.Equal(t, Shortage{ItemID: "b", Name: "Rose Petal", Requested: 3, Available: 2}, ce.Shortages[0])
	assert.Contains(t, ce.Message, "Rose Petal (only 2 left)")

	c, err := f.carts.Get(cartID)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 2)
	assert.Equal(t, 2, f.stock(t, "b"))
	page, err := f.orders.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
}

func TestBegin_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty := f.carts.Create()
	_, err := f.orch.Begin(ctx, empty.ID, validDetails(), payment.MethodUPI)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.orch.Begin(ctx, "no-such-cart", validDetails(), payment.MethodUPI)
	assert.Equal(t, KindNotFound, KindOf(err))

	cartID := f.cartWith(t, map[string]int{"c": 1})
	d := validDetails()
	d.Phone = "12345"
	d.Email = "not-an-email"
	d.State = "Atlantis"
	d.Pincode = ""
	_, err = f.orch.Begin(ctx, cartID, d, payment.MethodRazorpay)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindValidation, ce.Kind)
	assert.Equal(t, map[string]string{
		"phone":         "Phone number must be 10 digits",
		"email":         "Email is invalid",
		"state":         "State is invalid",
		"pincode":       "Pincode is required",
		"paymentMethod": "Payment method is not available",
	}, ce.Fields)
}

func TestBegin_RejectsNonPositiveQuantities(t *testing.T) {
	f := newFixture(t)
	cartID := f.cartWith(t, map[string]int{"c": 1})
	_, err := f.carts.UpdateQuantity(cartID, "c", 0)
	require.NoError(t, err)

	_, err = f.orch.Begin(context.Background(), cartID, validDetails(), payment.MethodUPI)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestComplete_IsIdempotentForCompletedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodBank)
	require.NoError(t, err)

	first, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR9"})
	require.NoError(t, err)
	second, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR9"})
	require.NoError(t, err)
	assert.Same(t, first, second)

	page, err := f.orders.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, 39, f.stock(t, "c"))
}

func TestComplete_RejectsConcurrentCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, _, err = f.orch.sessions.claim(sess.ID, time.Now())
	require.NoError(t, err)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR1"})
	assert.Equal(t, KindConflict, KindOf(err))
	_, err = f.orch.Dismiss(ctx, sess.ID)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestComplete_PaymentRejectionAllowsRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 2}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "  "})
	assert.Equal(t, KindPayment, KindOf(err))
	assert.ErrorIs(t, err, payment.ErrVerification)
	assert.Equal(t, 40, f.stock(t, "c"))

	got, err := f.orch.Lookup(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPayment, got.State)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR2"})
	require.NoError(t, err)
	assert.Equal(t, 38, f.stock(t, "c"))
}

func TestDismissAndFail_HaveNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, map[string]int{"a": 1})

	sess, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	dismissed, err := f.orch.Dismiss(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDismissed, dismissed.State)

	sess2, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	assert.NotEqual(t, sess.OrderID, sess2.OrderID)
	failed, err := f.orch.Fail(ctx, sess2.ID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, failed.State)
	assert.Equal(t, "card declined", failed.FailureReason)

	assert.Equal(t, 5, f.stock(t, "a"))
	c, err := f.carts.Get(cartID)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
	page, err := f.orders.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)

	_, err = f.orch.Dismiss(ctx, "missing")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestComplete_OrderNotRecordedIsReconciliationHazard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.flaky.failCreate = 1
	cartID := f.cartWith(t, map[string]int{"a": 1})
	sess, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR5"})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindPaymentCapturedOrderNotRecorded, ce.Kind)
	assert.Equal(t, "UTR5", ce.TransactionRef)
	assert.Equal(t, 5, f.stock(t, "a"))

	hazards, err := f.ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, "UTR5", hazards[0].TransactionRef)
	assert.Equal(t, "9876543210", hazards[0].CustomerPhone)

	c, err := f.carts.Get(cartID)
	require.NoError(t, err)
	assert.False(t, c.Empty())

	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR5"})
	require.NoError(t, err)
	assert.Equal(t, sess.OrderID, res.Order.OrderID)
	assert.Equal(t, 4, f.stock(t, "a"))
}

func TestComplete_ItemsNotRecordedResumesOnRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.flaky.failItems = 1
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 3}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR6"})
	assert.Equal(t, KindPaymentCapturedItemsNotRecorded, KindOf(err))
	assert.Equal(t, 40, f.stock(t, "c"))

	orphans, err := f.orders.WithoutItems(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)

	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR6"})
	require.NoError(t, err)
	assert.Len(t, res.Order.Items, 1)
	assert.Equal(t, 37, f.stock(t, "c"))

	page, err := f.orders.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
}

func TestComplete_RetryWithDifferentRefAfterItemsFailureConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.flaky.failItems = 1
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 3}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR-A"})
	assert.Equal(t, KindPaymentCapturedItemsNotRecorded, KindOf(err))

	_, err = f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR-B"})
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindConflict, ce.Kind)
	assert.Equal(t, "UTR-A", ce.TransactionRef)
	assert.Equal(t, sess.OrderID, ce.OrderID)
	assert.Contains(t, ce.Message, "UTR-A")
	assert.Equal(t, 40, f.stock(t, "c"))

	got, err := f.orch.Lookup(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingPayment, got.State)
	assert.Equal(t, "UTR-A", got.TransactionRef)

	hazards, err := f.ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, KindPaymentCapturedItemsNotRecorded, hazards[0].Kind)

	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR-A"})
	require.NoError(t, err)
	assert.Len(t, res.Order.Items, 1)
	assert.Equal(t, 37, f.stock(t, "c"))

	orphans, err := f.orders.WithoutItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
	page, err := f.orders.List(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
}

func TestComplete_ReusedTransactionRefConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	_, err = f.orch.Complete(ctx, first.ID, payment.Confirmation{TransactionID: "UTR7"})
	require.NoError(t, err)

	second, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	_, err = f.orch.Complete(ctx, second.ID, payment.Confirmation{TransactionID: "UTR7"})
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, 39, f.stock(t, "c"))
}

func TestComplete_PostPersistenceProblemsAreWarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("relay down")
	f.orch.inventory = brokenDecrement{f.catalog}

	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)
	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR8"})
	require.NoError(t, err)

	kinds := make([]WarningKind, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []WarningKind{WarningStockDecrement, WarningNotification}, kinds)
	assert.Equal(t, "c", res.Warnings[0].ItemID)
	assert.Equal(t, order.StatusConfirmed, res.Order.Status)
}

func TestComplete_SlowStockAlertDoesNotDelayCompletion(t *testing.T) {
	release := make(chan struct{})
	var alerts atomic.Int32
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		alerts.Add(1)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer relay.Close()
	defer close(release)

	f := newFixture(t)
	notify.Subscribe(f.bus, notify.NewRelay(relay.URL, "t").WithAlertPhone("9000000000"), 5*time.Second, nil)
	ctx := context.Background()
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"a": 1, "b": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	start := time.Now()
	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR11"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, res.Warnings, 2)
	assert.Eventually(t, func() bool { return alerts.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestBegin_StockReadFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.orch.inventory = brokenStockLevels{f.catalog}

	_, err := f.orch.Begin(context.Background(), f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindUnavailable, ce.Kind)
	assert.NotContains(t, ce.Message, "pq:")
	assert.ErrorContains(t, err, "connection refused")
}

func TestComplete_KeepsLinesAddedAfterBegin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.cartWith(t, map[string]int{"c": 2})
	sess, err := f.orch.Begin(ctx, cartID, validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	_, err = f.carts.Add(ctx, cartID, "a", 1)
	require.NoError(t, err)
	_, err = f.carts.Add(ctx, cartID, "c", 1)
	require.NoError(t, err)

	res, err := f.orch.Complete(ctx, sess.ID, payment.Confirmation{TransactionID: "UTR12"})
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, 2, res.Order.Items[0].Quantity)
	assert.Equal(t, 38, f.stock(t, "c"))

	c, err := f.carts.Get(cartID)
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, "c", c.Lines[0].ItemID)
	assert.Equal(t, 1, c.Lines[0].Quantity)
	assert.Equal(t, "a", c.Lines[1].ItemID)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	q, err := f.orch.Quote(context.Background(), f.cartWith(t, map[string]int{"a": 2}))
	require.NoError(t, err)
	assert.Equal(t, "1000", q.Subtotal.String())
	assert.Equal(t, "50", q.Shipping.String())
	assert.Equal(t, "1050", q.Total.String())

	q, err = f.orch.Quote(context.Background(), f.carts.Create().ID)
	require.NoError(t, err)
	assert.True(t, q.Total.IsZero())
}

func TestOrderIDs_StrictlyIncreasing(t *testing.T) {
	var g orderIDs
	now := time.UnixMilli(1760870400123)
	assert.Equal(t, "SS70400123", g.next(now))
	assert.Equal(t, "SS70400124", g.next(now))
	assert.Equal(t, "SS70400125", g.next(now.Add(-time.Second)))
}

func TestPruneSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.orch.Begin(ctx, f.cartWith(t, map[string]int{"c": 1}), validDetails(), payment.MethodUPI)
	require.NoError(t, err)

	assert.Zero(t, f.orch.PruneSessions(time.Hour))
	f.orch.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	assert.Equal(t, 1, f.orch.PruneSessions(time.Hour))
	_, err = f.orch.Lookup(sess.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}
