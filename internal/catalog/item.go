package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a perfume listed in the catalog. Stock is only changed by admin
// edits or by the decrement that follows a completed order.
type Item struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images" validate:"max=4,dive,required"`
	Category    string          `json:"category" validate:"required"`
	Brand       string          `json:"brand"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PrimaryImage returns the first image reference or an empty string.
func (i Item) PrimaryImage() string {
	if len(i.Images) == 0 {
		return ""
	}
	return i.Images[0]
}

// Filter narrows a catalog listing. Empty fields match everything.
type Filter struct {
	Category string
	Brand    string
	Query    string
}

// MaxImages is the number of image references an item may carry.
const MaxImages = 4
