package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	itemColumns = `id, name, description, price, images, category, brand, stock, created_at, updated_at`

	listItemsQuery = `
		SELECT ` + itemColumns + `
		FROM items
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR brand = $2)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC, id
	`
	getItemByIDQuery = `
		SELECT ` + itemColumns + `
		FROM items
		WHERE id = $1
	`
	getItemsByIDsQuery = `
		SELECT ` + itemColumns + `
		FROM items
		WHERE id = ANY($1::text[])
		ORDER BY array_position($1::text[], id)
	`
	insertItemQuery = `
		INSERT INTO items (id, name, description, price, images, category, brand, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	updateItemQuery = `
		UPDATE items
		SET name = $1,
			description = $2,
			price = $3,
			images = $4,
			category = $5,
			brand = $6,
			stock = $7,
			updated_at = $8
		WHERE id = $9
		RETURNING created_at
	`
	deleteItemQuery = `DELETE FROM items WHERE id = $1`

	// the stock guard lives in the WHERE clause so concurrent checkouts
	// cannot drive stock negative
	decrementStockQuery = `
		UPDATE items
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`
	stockQuery = `SELECT stock FROM items WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, listItemsQuery, f.Category, f.Brand, f.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Item, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, getItemByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return it, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return []Item{}, nil
	}
	rows, err := r.db.QueryContext(ctx, getItemsByIDsQuery, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *PostgresRepository) Create(ctx context.Context, it Item) (Item, error) {
	_, err := r.db.ExecContext(ctx, insertItemQuery,
		it.ID, it.Name, it.Description, it.Price, pq.Array(it.Images),
		it.Category, it.Brand, it.Stock, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, it Item) (Item, error) {
	err := r.db.QueryRowContext(ctx, updateItemQuery,
		it.Name, it.Description, it.Price, pq.Array(it.Images),
		it.Category, it.Brand, it.Stock, it.UpdatedAt, id).Scan(&it.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	it.ID = id
	return it, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteItemQuery, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	var remaining int
	err := r.db.QueryRowContext(ctx, decrementStockQuery, id, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	// no row updated: either the item is gone or the guard rejected it
	var current int
	if err := r.db.QueryRowContext(ctx, stockQuery, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return current, ErrInsufficientStock
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	out := make([]Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanItem(s rowScanner) (Item, error) {
	var (
		it     Item
		desc   sql.NullString
		brand  sql.NullString
		images pq.StringArray
	)
	if err := s.Scan(&it.ID, &it.Name, &desc, &it.Price, &images, &it.Category, &brand, &it.Stock, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return Item{}, err
	}
	it.Description = desc.String
	it.Brand = brand.String
	it.Images = []string(images)
	if it.Images == nil {
		it.Images = []string{}
	}
	return it, nil
}
