package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	orderColumns = `id, order_id, customer_name, customer_phone, customer_email, shipping_address, city, state, pincode,
		total_amount, payment_method, transaction_ref, status, prepared, created_at, updated_at`
	itemColumns = `id, order_ref, item_id, item_name, item_image, quantity, unit_price, line_total`

	insertOrderQuery = `
		INSERT INTO orders (order_id, customer_name, customer_phone, customer_email, shipping_address, city, state, pincode,
			total_amount, payment_method, transaction_ref, status, prepared, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id
	`
	insertItemQuery = `
		INSERT INTO order_items (order_ref, item_id, item_name, item_image, quantity, unit_price, line_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`
	orderByOrderIDQuery = `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	orderByTxRefQuery   = `SELECT ` + orderColumns + ` FROM orders WHERE transaction_ref = $1`
	itemsForOrdersQuery = `SELECT ` + itemColumns + ` FROM order_items WHERE order_ref = ANY($1::bigint[]) ORDER BY order_ref, id`
	listFilterClause    = `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR lower(customer_email) = lower($2))`
	countOrdersQuery    = `SELECT COUNT(*) FROM orders ` + listFilterClause
	updateStatusQuery   = `UPDATE orders SET status = $1, updated_at = now() WHERE order_id = $2`
	updatePreparedQuery = `UPDATE orders SET prepared = $1, updated_at = now() WHERE order_id = $2`

	ordersWithoutItemsQuery = `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE NOT EXISTS (SELECT 1 FROM order_items i WHERE i.order_ref = o.id)
		ORDER BY created_at
	`
	countsQuery = `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE NOT prepared AND status <> 'cancelled')
		FROM orders
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueViolation reports whether err is a unique-constraint failure and,
// if so, which constraint fired.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == uniqueViolationCode
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint, string(pqErr.Code) == uniqueViolationCode
	}
	return "", false
}

func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	err := r.db.QueryRowContext(ctx, insertOrderQuery,
		o.OrderID, o.CustomerName, o.CustomerPhone, o.CustomerEmail, o.ShippingAddress, o.City, o.State, o.Pincode,
		o.TotalAmount, o.PaymentMethod, o.TransactionRef, string(o.Status), o.Prepared, o.CreatedAt, o.UpdatedAt).Scan(&o.ID)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "order_id") {
				return Order{}, ErrDuplicateOrderID
			}
			return Order{}, ErrDuplicateTransaction
		}
		return Order{}, err
	}
	o.Items = []Item{}
	return o, nil
}

// AddItems inserts every line in one transaction so an order never ends up
// with half of its items.
func (r *PostgresRepository) AddItems(ctx context.Context, orderRef int64, items []Item) ([]Item, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]Item, len(items))
	for i, it := range items {
		it.OrderRef = orderRef
		if err := tx.QueryRowContext(ctx, insertItemQuery,
			orderRef, it.ItemID, it.ItemName, it.ItemImage, it.Quantity, it.UnitPrice, it.LineTotal).Scan(&it.ID); err != nil {
			return nil, fmt.Errorf("insert order item %s: %w", it.ItemID, err)
		}
		out[i] = it
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) GetByOrderID(ctx context.Context, orderID string) (Order, error) {
	return r.getOne(ctx, orderByOrderIDQuery, orderID)
}

func (r *PostgresRepository) GetByTransactionRef(ctx context.Context, ref string) (Order, error) {
	return r.getOne(ctx, orderByTxRefQuery, ref)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	orders := []Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, countOrdersQuery, string(f.Status), f.Email).Scan(&total); err != nil {
		return nil, 0, err
	}
	direction := "DESC"
	if f.Sort == "asc" {
		direction = "ASC"
	}
	query := `SELECT ` + orderColumns + ` FROM orders ` + listFilterClause +
		` ORDER BY created_at ` + direction + `, id ` + direction + ` LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, query, string(f.Status), f.Email, f.Limit, f.offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	orders, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, s Status) error {
	return r.exec(ctx, updateStatusQuery, string(s), orderID)
}

func (r *PostgresRepository) SetPrepared(ctx context.Context, orderID string, prepared bool) error {
	return r.exec(ctx, updatePreparedQuery, prepared, orderID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) WithoutItems(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, ordersWithoutItemsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *PostgresRepository) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, countsQuery).Scan(&c.Pending, &c.Unprepared)
	return c, err
}

func (r *PostgresRepository) attachItems(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	refs := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i := range orders {
		refs[i] = orders[i].ID
		index[orders[i].ID] = i
		orders[i].Items = []Item{}
	}
	rows, err := r.db.QueryContext(ctx, itemsForOrdersQuery, pq.Array(refs))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		var image sql.NullString
		if err := rows.Scan(&it.ID, &it.OrderRef, &it.ItemID, &it.ItemName, &image, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return err
		}
		it.ItemImage = image.String
		if i, ok := index[it.OrderRef]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return rows.Err()
}

func scanOrders(rows *sql.Rows) ([]Order, error) {
	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(s rowScanner) (Order, error) {
	var (
		o      Order
		email  sql.NullString
		status string
	)
	if err := s.Scan(&o.ID, &o.OrderID, &o.CustomerName, &o.CustomerPhone, &email, &o.ShippingAddress, &o.City, &o.State, &o.Pincode,
		&o.TotalAmount, &o.PaymentMethod, &o.TransactionRef, &status, &o.Prepared, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.CustomerEmail = email.String
	o.Status = Status(status)
	o.Items = []Item{}
	return o, nil
}
