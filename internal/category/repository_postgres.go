package category

import (
	"context"
	"database/sql"
	"sort"
	"sync"
)

// Repository provides access to category rows.
type Repository interface {
	List(ctx context.Context, limit int) ([]Category, error)
	// Save inserts the category or updates the image of an existing one
	// with the same name.
	Save(ctx context.Context, name string, image *string) (Category, error)
}

// PostgresRepository implements Repository using Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns category rows ordered by `ord` then id.
// If the table/query is not available the function returns an empty slice (caller-friendly).
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, image FROM categories ORDER BY COALESCE(ord, 0) DESC, id LIMIT $1`, limit)
	if err != nil {
		// table may not exist yet; keep the API resilient
		return []Category{}, nil
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		var (
			cat Category
			img sql.NullString
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &img); err != nil {
			continue
		}
		if img.Valid {
			cat.Image = &img.String
		}
		out = append(out, cat)
	}
	return out, nil
}

const saveCategoryQuery = `
	INSERT INTO categories (name, image)
	VALUES ($1, $2)
	ON CONFLICT (name) DO UPDATE SET image = COALESCE(EXCLUDED.image, categories.image)
	RETURNING id, image
`

func (r *PostgresRepository) Save(ctx context.Context, name string, image *string) (Category, error) {
	cat := Category{Name: name}
	var img sql.NullString
	if err := r.db.QueryRowContext(ctx, saveCategoryQuery, name, image).Scan(&cat.ID, &img); err != nil {
		return Category{}, err
	}
	if img.Valid {
		cat.Image = &img.String
	}
	return cat, nil
}

// InMemoryRepository serves a fixed category list.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items []Category
}

func NewInMemoryRepository(names []string) *InMemoryRepository {
	r := &InMemoryRepository{}
	for i, n := range names {
		r.items = append(r.items, Category{ID: i + 1, Name: n})
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, limit int) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, len(r.items))
	copy(out, r.items)
	sort.SliceStable(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Save(_ context.Context, name string, image *string) (Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].Name == name {
			if image != nil {
				r.items[i].Image = image
			}
			return r.items[i], nil
		}
	}
	cat := Category{ID: len(r.items) + 1, Name: name, Image: image}
	r.items = append(r.items, cat)
	return cat, nil
}
