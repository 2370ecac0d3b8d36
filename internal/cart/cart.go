package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is one entry of a cart: a snapshot of the item taken when it was
// first added, plus the requested quantity.
type Line struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image"`
	Quantity int             `json:"quantity"`
}

// Subtotal is price × quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds at most one line per item id. Only the methods below mutate it.
type Cart struct {
	ID        string    `json:"id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Add merges l into the cart: an existing line for the same item gets its
// quantity increased, otherwise l is appended.
func (c *Cart) Add(l Line) {
	for i := range c.Lines {
		if c.Lines[i].ItemID == l.ItemID {
			c.Lines[i].Quantity += l.Quantity
			return
		}
	}
	c.Lines = append(c.Lines, l)
}

// UpdateQuantity replaces the quantity of the matching line. The value is
// not clamped here; callers enforce their own minimum. It reports whether a
// line matched.
func (c *Cart) UpdateQuantity(itemID string, qty int) bool {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines[i].Quantity = qty
			return true
		}
	}
	return false
}

// Remove drops the line for itemID, if any.
func (c *Cart) Remove(itemID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// Deduct takes paid quantities out of the cart. A line whose quantity
// reaches zero is dropped; lines that were not paid for stay.
func (c *Cart) Deduct(paid []Line) {
	for _, p := range paid {
		for i := range c.Lines {
			if c.Lines[i].ItemID != p.ItemID {
				continue
			}
			if c.Lines[i].Quantity <= p.Quantity {
				c.Remove(p.ItemID)
			} else {
				c.Lines[i].Quantity -= p.Quantity
			}
			break
		}
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
}

// Total is recomputed from the lines on every call.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Count is the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Empty reports whether the cart has no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

func (c Cart) clone() Cart {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	c.Lines = lines
	return c
}
