package admin

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
	"github.com/wichananm65/perfume-shop-backend/internal/order"
)

// LowStockBelow is the dashboard's low-stock cut-off.
const LowStockBelow = 10

type Items interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Item, error)
}

type Orders interface {
	Counts(ctx context.Context) (order.Counts, error)
}

type Stats struct {
	TotalProducts    int             `json:"totalProducts"`
	StockValue       decimal.Decimal `json:"stockValue"`
	LowStock         int             `json:"lowStock"`
	Categories       int             `json:"categories"`
	PendingOrders    int             `json:"pendingOrders"`
	UnpreparedOrders int             `json:"unpreparedOrders"`
}

func ComputeStats(ctx context.Context, items Items, orders Orders) (Stats, error) {
	all, err := items.List(ctx, catalog.Filter{})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalProducts: len(all), StockValue: decimal.Zero}
	cats := map[string]struct{}{}
	for _, it := range all {
		st.StockValue = st.StockValue.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Stock))))
		if it.Stock < LowStockBelow {
			st.LowStock++
		}
		if it.Category != "" {
			cats[it.Category] = struct{}{}
		}
	}
	st.Categories = len(cats)

	counts, err := orders.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	st.PendingOrders = counts.Pending
	st.UnpreparedOrders = counts.Unprepared
	return st, nil
}
