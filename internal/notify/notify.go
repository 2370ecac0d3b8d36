// Package notify sends order confirmations to customers and stock alerts to
// the shop owner through a messaging relay.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/wichananm65/perfume-shop-backend/internal/events"
)

type Notifier interface {
	OrderPlaced(ctx context.Context, ev events.OrderPlaced) error
	LowStock(ctx context.Context, ev events.LowStock) error
}

// NormalizePhone keeps the digits of phone and prefixes the 91 country code
// when it is missing.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if len(digits) == 10 || !strings.HasPrefix(digits, "91") {
		return "91" + digits
	}
	return digits
}

// Subscribe wires the low-stock alert to the event bus. Alerts are sent in
// the background so the publisher never waits on the relay; each send is
// cut off after timeout.
func Subscribe(bus *events.Bus, n Notifier, timeout time.Duration, log *slog.Logger) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	events.Subscribe(bus, "notify.low_stock", func(ctx context.Context, ev events.LowStock) error {
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			if err := n.LowStock(ctx, ev); err != nil {
				log.WarnContext(ctx, "low stock alert failed",
					slog.String("item_id", ev.ItemID),
					slog.Int("remaining", ev.Remaining),
					slog.Any("error", err))
			}
		}()
		return nil
	})
}

// LogNotifier is used when no relay is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, ev events.OrderPlaced) error {
	n.log.InfoContext(ctx, "order notification (relay disabled)",
		slog.String("order_id", ev.OrderID),
		slog.String("phone", NormalizePhone(ev.CustomerPhone)),
		slog.String("total", ev.Total.String()))
	return nil
}

func (n *LogNotifier) LowStock(ctx context.Context, ev events.LowStock) error {
	n.log.WarnContext(ctx, "low stock",
		slog.String("item_id", ev.ItemID),
		slog.String("item_name", ev.ItemName),
		slog.Int("remaining", ev.Remaining))
	return nil
}
