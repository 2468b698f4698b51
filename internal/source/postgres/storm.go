package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// StormSource reports storm events (hail, wind, tornado tracks) recorded or
// revised by the weather ingest pipeline.
type StormSource struct {
	db *sqlx.DB
}

func NewStormSource(db *sqlx.DB) *StormSource {
	return &StormSource{db: db}
}

func (s *StormSource) Name() string { return "storm" }

// stormRow is the wire projection of one storm event. Flat fields only;
// timestamps marshal as ISO-8601 strings.
type stormRow struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	EventType string    `db:"event_type" json:"eventType"`
	Severity  string    `db:"severity" json:"severity"`
	HailSize  float64   `db:"hail_size" json:"hailSize"`
	WindSpeed float64   `db:"wind_speed" json:"windSpeed"`
	County    string    `db:"county" json:"county"`
	State     string    `db:"state" json:"state"`
	StartedAt time.Time `db:"started_at" json:"startedAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

const stormQuery = `
SELECT id, title, event_type, severity, hail_size, wind_speed,
       county, state, started_at, updated_at
FROM storm_events
WHERE updated_at > $1
ORDER BY updated_at DESC
LIMIT $2`

func (s *StormSource) Changes(ctx context.Context, since time.Time, limit int) ([]any, error) {
	var rows []stormRow
	if err := s.db.SelectContext(ctx, &rows, stormQuery, since, limit); err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}
