package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// CustomerSource reports high-priority customer updates: stage moves,
// claim status changes, new notes on accounts flagged hot. Routine edits
// stay out of the stream.
type CustomerSource struct {
	db *sqlx.DB
}

func NewCustomerSource(db *sqlx.DB) *CustomerSource {
	return &CustomerSource{db: db}
}

func (s *CustomerSource) Name() string { return "customer" }

type customerRow struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Stage       string    `db:"stage" json:"stage"`
	ClaimStatus string    `db:"claim_status" json:"claimStatus"`
	Priority    string    `db:"priority" json:"priority"`
	City        string    `db:"city" json:"city"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

const customerQuery = `
SELECT id, name, stage, claim_status, priority, city, updated_at
FROM customers
WHERE updated_at > $1 AND priority = 'high'
ORDER BY updated_at DESC
LIMIT $2`

func (s *CustomerSource) Changes(ctx context.Context, since time.Time, limit int) ([]any, error) {
	var rows []customerRow
	if err := s.db.SelectContext(ctx, &rows, customerQuery, since, limit); err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}
