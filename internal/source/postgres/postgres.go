// Package postgres implements the upstream change feeds against the CRM's
// Postgres database. Each source is a single bounded changed-after query
// returning flat projections ready for the wire.
package postgres

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stormcrm/backend/internal/source"
)

// Connect opens and pings the CRM database.
func Connect(dsn string) (*sqlx.DB, error) {
	return sqlx.Connect("postgres", dsn)
}

// Sources returns the three production change feeds in broadcast order:
// storms first, then intel, then customer updates.
func Sources(db *sqlx.DB) []source.Source {
	return []source.Source{
		NewStormSource(db),
		NewIntelSource(db),
		NewCustomerSource(db),
	}
}
