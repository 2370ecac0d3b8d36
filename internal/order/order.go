package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Order is a placed purchase. ID is the storage key; OrderID is the
// customer-facing reference printed on confirmations.
type Order struct {
	ID              int64           `json:"id"`
	OrderID         string          `json:"orderId"`
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	CustomerEmail   string          `json:"customerEmail"`
	ShippingAddress string          `json:"shippingAddress"`
	City            string          `json:"city"`
	State           string          `json:"state"`
	Pincode         string          `json:"pincode"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	PaymentMethod   string          `json:"paymentMethod"`
	TransactionRef  string          `json:"transactionRef"`
	Status          Status          `json:"status"`
	Prepared        bool            `json:"prepared"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	Items           []Item          `json:"items"`
}

// Item is one purchased line, priced at checkout time.
type Item struct {
	ID        int64           `json:"id"`
	OrderRef  int64           `json:"orderRef"`
	ItemID    string          `json:"itemId"`
	ItemName  string          `json:"itemName"`
	ItemImage string          `json:"itemImage"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// NewOrderID returns "SS" followed by the last eight digits of the unix
// millisecond clock.
func NewOrderID(now time.Time) string {
	ms := fmt.Sprintf("%d", now.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "SS" + ms
}

// ListFilter selects one page of orders for the admin list.
type ListFilter struct {
	Status Status
	Email  string
	Page   int
	Limit  int
	Sort   string
}

const (
	defaultPageSize = 15
	maxPageSize     = 100
)

func (f ListFilter) normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Sort != "asc" {
		f.Sort = "desc"
	}
	return f
}

func (f ListFilter) offset() int {
	return (f.Page - 1) * f.Limit
}

type Metadata struct {
	Total        int  `json:"total"`
	CurrentPage  int  `json:"currentPage"`
	Limit        int  `json:"limit"`
	HasPrevPage  bool `json:"hasPrevPage"`
	HasNextPage  bool `json:"hasNextPage"`
	PreviousPage int  `json:"previousPage"`
	NextPage     int  `json:"nextPage"`
}

type Page struct {
	Orders   []Order  `json:"orders"`
	Metadata Metadata `json:"metadata"`
}

func newMetadata(f ListFilter, total int) Metadata {
	pages := (total + f.Limit - 1) / f.Limit
	return Metadata{
		Total:        total,
		CurrentPage:  f.Page,
		Limit:        f.Limit,
		HasPrevPage:  f.Page > 1,
		HasNextPage:  pages > f.Page,
		PreviousPage: f.Page - 1,
		NextPage:     f.Page + 1,
	}
}

// Counts feeds the admin dashboard.
type Counts struct {
	Pending    int `json:"pending"`
	Unprepared int `json:"unprepared"`
}
