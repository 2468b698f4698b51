package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// IntelSource reports market-intel items: permits pulled, adjuster
// sightings, competitor activity -- anything the canvassing team feeds in.
type IntelSource struct {
	db *sqlx.DB
}

func NewIntelSource(db *sqlx.DB) *IntelSource {
	return &IntelSource{db: db}
}

func (s *IntelSource) Name() string { return "intel" }

type intelRow struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Category  string    `db:"category" json:"category"`
	Summary   string    `db:"summary" json:"summary"`
	Region    string    `db:"region" json:"region"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

const intelQuery = `
SELECT id, title, category, summary, region, updated_at
FROM intel_items
WHERE updated_at > $1
ORDER BY updated_at DESC
LIMIT $2`

func (s *IntelSource) Changes(ctx context.Context, since time.Time, limit int) ([]any, error) {
	var rows []intelRow
	if err := s.db.SelectContext(ctx, &rows, intelQuery, since, limit); err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}
