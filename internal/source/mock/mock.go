// Package mock provides generated change feeds for demo mode. The server
// runs against these instead of Postgres when started with -mock, so the
// live stream can be exercised without a CRM database.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/stormcrm/backend/internal/source"
)

// Source mints one record every period, starting at the generator's start
// time. Changes reports the records whose mint time falls inside the
// (since, now] window, newest first -- the same contract the Postgres
// sources honor, which makes demo mode a faithful stand-in.
type Source struct {
	name   string
	period time.Duration
	start  time.Time
	now    func() time.Time
	build  func(seq int, ts time.Time) any
}

func (s *Source) Name() string { return s.name }

func (s *Source) Changes(_ context.Context, since time.Time, limit int) ([]any, error) {
	now := s.now()
	elapsed := now.Sub(s.start)
	if elapsed < s.period {
		return nil, nil
	}

	var out []any
	for seq := int(elapsed / s.period); seq >= 1; seq-- {
		ts := s.start.Add(time.Duration(seq) * s.period)
		if !ts.After(since) {
			break
		}
		out = append(out, s.build(seq, ts))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stormRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	EventType string    `json:"eventType"`
	Severity  string    `json:"severity"`
	HailSize  float64   `json:"hailSize"`
	WindSpeed float64   `json:"windSpeed"`
	County    string    `json:"county"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type intelRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	Region    string    `json:"region"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type customerRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Stage       string    `json:"stage"`
	ClaimStatus string    `json:"claimStatus"`
	Priority    string    `json:"priority"`
	City        string    `json:"city"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

var (
	counties   = []string{"Tarrant", "Denton", "Collin", "Dallas", "Johnson"}
	eventTypes = []string{"hail", "wind", "hail", "tornado"}
	severities = []string{"moderate", "severe", "extreme"}

	intelTitles = []string{
		"Roofing permit filed",
		"Adjuster spotted on site",
		"Competitor yard sign up",
		"HOA board meeting scheduled",
	}
	intelCategories = []string{"permit", "adjuster", "competitor", "hoa"}

	customerNames  = []string{"Dana Whitfield", "Marcus Lee", "Priya Natarajan", "Tom Okafor", "Elena Ruiz"}
	customerStages = []string{"inspection_scheduled", "claim_filed", "adjuster_meeting", "contract_signed"}
	claimStatuses  = []string{"pending", "approved", "supplement", "pending"}
	cities         = []string{"Fort Worth", "Keller", "Frisco", "Arlington", "Plano"}
)

// Sources returns the three demo feeds in broadcast order. Storm activity
// is rarest, customer churn most frequent, roughly mirroring production.
func Sources(start time.Time) []source.Source {
	nowFn := time.Now
	return []source.Source{
		&Source{
			name: "storm", period: 45 * time.Second, start: start, now: nowFn,
			build: func(seq int, ts time.Time) any {
				return stormRecord{
					ID:        fmt.Sprintf("storm-%04d", seq),
					Title:     fmt.Sprintf("%s event over %s County", eventTypes[seq%len(eventTypes)], counties[seq%len(counties)]),
					EventType: eventTypes[seq%len(eventTypes)],
					Severity:  severities[seq%len(severities)],
					HailSize:  0.75 + float64(seq%5)*0.25,
					WindSpeed: 40 + float64(seq%7)*10,
					County:    counties[seq%len(counties)],
					State:     "TX",
					StartedAt: ts.Add(-20 * time.Minute),
					UpdatedAt: ts,
				}
			},
		},
		&Source{
			name: "intel", period: 30 * time.Second, start: start, now: nowFn,
			build: func(seq int, ts time.Time) any {
				return intelRecord{
					ID:        fmt.Sprintf("intel-%04d", seq),
					Title:     intelTitles[seq%len(intelTitles)],
					Category:  intelCategories[seq%len(intelCategories)],
					Summary:   fmt.Sprintf("%s near %s", intelTitles[seq%len(intelTitles)], cities[seq%len(cities)]),
					Region:    counties[seq%len(counties)],
					UpdatedAt: ts,
				}
			},
		},
		&Source{
			name: "customer", period: 20 * time.Second, start: start, now: nowFn,
			build: func(seq int, ts time.Time) any {
				return customerRecord{
					ID:          fmt.Sprintf("cust-%04d", seq),
					Name:        customerNames[seq%len(customerNames)],
					Stage:       customerStages[seq%len(customerStages)],
					ClaimStatus: claimStatuses[seq%len(claimStatuses)],
					Priority:    "high",
					City:        cities[seq%len(cities)],
					UpdatedAt:   ts,
				}
			},
		},
	}
}
