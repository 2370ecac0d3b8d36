package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/perfume-shop-backend/internal/events"
)

// ErrNoAlertPhone is returned by LowStock when no recipient is configured.
var ErrNoAlertPhone = errors.New("no alert phone configured")

// Relay posts JSON messages to the messaging relay endpoint. Every message
// carries the phone it is addressed to.
type Relay struct {
	url        string
	client     *resty.Client
	alertPhone string
}

func NewRelay(url, token string) *Relay {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return &Relay{url: url, client: client}
}

// WithAlertPhone sets the shop owner's number that low-stock alerts go to.
func (r *Relay) WithAlertPhone(phone string) *Relay {
	r.alertPhone = phone
	return r
}

type orderItemPayload struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type orderPayload struct {
	Type            string             `json:"type"`
	Phone           string             `json:"phone"`
	OrderID         string             `json:"orderId"`
	CustomerName    string             `json:"customerName"`
	CustomerPhone   string             `json:"customerPhone"`
	CustomerEmail   string             `json:"customerEmail"`
	Items           []orderItemPayload `json:"items"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	ShippingAddress string             `json:"shippingAddress"`
	City            string             `json:"city"`
	State           string             `json:"state"`
	Pincode         string             `json:"pincode"`
	TransactionID   string             `json:"transactionId"`
}

type lowStockPayload struct {
	Type      string `json:"type"`
	Phone     string `json:"phone"`
	ItemID    string `json:"itemId"`
	ItemName  string `json:"itemName"`
	Remaining int    `json:"remaining"`
}

func (r *Relay) OrderPlaced(ctx context.Context, ev events.OrderPlaced) error {
	items := make([]orderItemPayload, 0, len(ev.Items))
	for _, it := range ev.Items {
		items = append(items, orderItemPayload{Name: it.Name, Quantity: it.Quantity, Price: it.UnitPrice})
	}
	return r.post(ctx, orderPayload{
		Type:            "order_placed",
		Phone:           NormalizePhone(ev.CustomerPhone),
		OrderID:         ev.OrderID,
		CustomerName:    ev.CustomerName,
		CustomerPhone:   ev.CustomerPhone,
		CustomerEmail:   ev.CustomerEmail,
		Items:           items,
		TotalAmount:     ev.Total,
		ShippingAddress: ev.ShippingAddress,
		City:            ev.City,
		State:           ev.State,
		Pincode:         ev.Pincode,
		TransactionID:   ev.TransactionRef,
	})
}

func (r *Relay) LowStock(ctx context.Context, ev events.LowStock) error {
	if r.alertPhone == "" {
		return ErrNoAlertPhone
	}
	return r.post(ctx, lowStockPayload{
		Type:      "low_stock",
		Phone:     NormalizePhone(r.alertPhone),
		ItemID:    ev.ItemID,
		ItemName:  ev.ItemName,
		Remaining: ev.Remaining,
	})
}

func (r *Relay) post(ctx context.Context, body any) error {
	resp, err := r.client.R().SetContext(ctx).SetBody(body).Post(r.url)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("relay responded %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
