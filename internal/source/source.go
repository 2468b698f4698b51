package source

import (
	"context"
	"time"
)

// Source is one upstream change feed (e.g. storm events, intel items,
// customer updates). Each implementation knows how to query its backing
// store for records changed since a given instant and project them into
// flat, wire-ready payloads.
//
// Sources are read-only collaborators: the notifier never mutates them.
// Changes is called concurrently with other sources' Changes during a poll
// tick, so implementations must be safe for that (a *sqlx.DB already is).
type Source interface {
	// Name returns the source's tag, e.g. "storm", "intel", "customer".
	// It doubles as the event kind for every record this source reports.
	Name() string

	// Changes returns payloads for records changed strictly after since,
	// newest first, capped at limit. Results must be flat projections
	// (JSON-marshalable, ISO-8601 date strings, no ORM objects).
	//
	// An empty slice and nil error means nothing changed in the window.
	Changes(ctx context.Context, since time.Time, limit int) ([]any, error)
}
