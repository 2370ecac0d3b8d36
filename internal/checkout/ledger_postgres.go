package checkout

import (
	"context"
	"database/sql"
)

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const (
	insertHazardQuery = `
		INSERT INTO reconciliation_hazards (kind, order_id, transaction_ref, payment_method, customer_name,
			customer_phone, customer_email, amount, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	listHazardsQuery = `
		SELECT id, kind, order_id, transaction_ref, payment_method, customer_name, customer_phone, customer_email,
			amount, detail, created_at
		FROM reconciliation_hazards
		ORDER BY created_at DESC, id DESC
	`
)

func (l *PostgresLedger) Record(ctx context.Context, h Hazard) error {
	_, err := l.db.ExecContext(ctx, insertHazardQuery,
		string(h.Kind), h.OrderID, h.TransactionRef, h.PaymentMethod, h.CustomerName,
		h.CustomerPhone, h.CustomerEmail, h.Amount, h.Detail, h.CreatedAt)
	return err
}

func (l *PostgresLedger) List(ctx context.Context) ([]Hazard, error) {
	rows, err := l.db.QueryContext(ctx, listHazardsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Hazard, 0)
	for rows.Next() {
		var (
			h    Hazard
			kind string
		)
		if err := rows.Scan(&h.ID, &kind, &h.OrderID, &h.TransactionRef, &h.PaymentMethod, &h.CustomerName,
			&h.CustomerPhone, &h.CustomerEmail, &h.Amount, &h.Detail, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Kind = Kind(kind)
		out = append(out, h)
	}
	return out, rows.Err()
}
