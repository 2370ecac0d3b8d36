// Package database opens the Postgres pool and applies the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects through the pgx stdlib driver and pings within five seconds.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// schema is applied on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		image TEXT,
		ord INT
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		price NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		images TEXT[] NOT NULL DEFAULT '{}',
		category TEXT NOT NULL,
		brand TEXT,
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS items_category_idx ON items (category)`,
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL,
		phone TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (lower(email))`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL CONSTRAINT orders_order_id_key UNIQUE,
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		city TEXT NOT NULL,
		state TEXT NOT NULL,
		pincode TEXT NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL,
		transaction_ref TEXT NOT NULL CONSTRAINT orders_transaction_ref_key UNIQUE,
		status TEXT NOT NULL DEFAULT 'confirmed',
		prepared BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_email_idx ON orders (lower(customer_email))`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_ref BIGINT NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		item_name TEXT NOT NULL,
		item_image TEXT,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		line_total NUMERIC(12,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS order_items_order_ref_idx ON order_items (order_ref)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_hazards (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		order_id TEXT NOT NULL,
		transaction_ref TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		customer_phone TEXT NOT NULL,
		customer_email TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema applies every statement of the schema in order.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
