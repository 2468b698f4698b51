package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/stormcrm/backend/internal/event"
	"github.com/stormcrm/backend/internal/source"
)

// Subscriber is one connected client's output channel. Liveness is
// discovered only at write time: a Send error means the channel is broken
// and the hub drops it. There is no separate health check.
//
// Send must not block -- transport adapters buffer writes and report a
// full buffer as an error, which the hub treats the same as a closed
// connection. The hub calls Send under its own lock during the join
// greeting, so an implementation that blocks there deadlocks Add against
// every other hub method.
type Subscriber interface {
	// ID identifies the subscriber in logs.
	ID() string

	// Send delivers one encoded event. A non-nil error marks the
	// subscriber as broken; the hub will not call Send on it again.
	Send(p []byte) error

	// Close tells the subscriber it has been dropped so its transport
	// can tear the connection down. Called at most once per removal but
	// possibly again on a redundant Remove; implementations must be
	// idempotent and must not block.
	Close()
}

// Options tunes the hub's shared poller.
type Options struct {
	// PollInterval is the shared poll timer period. Defaults to 10s.
	// One timer serves all subscribers regardless of count.
	PollInterval time.Duration

	// ResultLimit caps each source's per-tick result count, bounding the
	// event burst after an outage. Defaults to 10.
	ResultLimit int
}

const (
	defaultPollInterval = 10 * time.Second
	defaultResultLimit  = 10
)

// Hub owns the subscriber registry, the poll cursor and the poller
// lifecycle flag. All three are process-wide shared state with no owner
// besides the hub, so every access goes through its mutex.
//
// Lifecycle: the poll timer starts when the first subscriber joins and
// stops when the last one leaves -- either from Remove, or from inside a
// tick that observes an empty registry. Idle hubs issue zero upstream
// queries.
type Hub struct {
	mu      sync.Mutex
	subs    []Subscriber // registration order; broadcasts iterate in order
	polling bool
	cancel  context.CancelFunc
	cursor  time.Time

	sources  []source.Source
	interval time.Duration
	limit    int
	now      func() time.Time
}

// Status is a point-in-time snapshot of the hub for ops endpoints.
type Status struct {
	Subscribers int       `json:"subscribers"`
	Polling     bool      `json:"polling"`
	Cursor      time.Time `json:"cursor"`
}

// NewHub builds a hub over the given sources. The cursor starts at the
// current time: only changes made after process start are streamed.
func NewHub(sources []source.Source, opts Options) *Hub {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = defaultResultLimit
	}
	h := &Hub{
		sources:  sources,
		interval: opts.PollInterval,
		limit:    opts.ResultLimit,
		now:      time.Now,
	}
	h.cursor = h.now()
	return h
}

// Add registers a subscriber, greets it with a connected event, and starts
// the shared poller if it is not already running. The greeting goes out
// under the hub lock so no poll-tick broadcast can reach the subscriber
// before it.
func (h *Hub) Add(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subs = append(h.subs, sub)
	count := len(h.subs)

	if !h.polling {
		h.polling = true
		ctx, cancel := context.WithCancel(context.Background())
		h.cancel = cancel
		go h.run(ctx)
	}

	greeting, err := event.Connected(count, h.now()).Encode()
	if err != nil {
		log.Err(err).Msg("encode connected event")
	} else if err := sub.Send(greeting); err != nil {
		log.Debug().Err(err).Str("subscriber", sub.ID()).Msg("subscriber broken on join")
		h.removeLocked(sub)
		return
	}

	log.Info().Str("subscriber", sub.ID()).Int("clients", count).Msg("subscriber joined")
}

// Remove unregisters a subscriber. Safe to call multiple times for the
// same subscriber (explicit disconnect and a failed broadcast write both
// call it). Dropping the last subscriber stops the poller.
func (h *Hub) Remove(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub Subscriber) {
	found := false
	for i, s := range h.subs {
		if s == sub {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}
	// Closing here, not just unregistering, is what actually ends the
	// client's connection: a pruned subscriber with a live transport would
	// keep receiving heartbeats while silently missing every event.
	sub.Close()
	log.Info().Str("subscriber", sub.ID()).Int("clients", len(h.subs)).Msg("subscriber left")
	if len(h.subs) == 0 {
		h.stopLocked()
	}
}

// stopLocked clears the lifecycle flag and cancels the poller context.
// Callers must hold h.mu.
func (h *Hub) stopLocked() {
	h.polling = false
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// Shutdown drops every subscriber and stops the poller. Run at process
// exit before http.Server.Shutdown: closing the subscribers ends their
// long-lived stream handlers, which is what lets the HTTP server drain.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		sub.Close()
	}
	h.subs = nil
	h.stopLocked()
}

// Size returns the current subscriber count.
func (h *Hub) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Status snapshots the hub state.
func (h *Hub) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Status{
		Subscribers: len(h.subs),
		Polling:     h.polling,
		Cursor:      h.cursor,
	}
}

// run is the poller goroutine. At most one instance is live at a time:
// Add starts it only when the lifecycle flag is clear, and it clears the
// flag itself before returning through idleStop.
func (h *Hub) run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", h.interval).Int("sources", len(h.sources)).Msg("change poller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change poller stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if h.idleStop() {
				log.Info().Msg("change poller stopped: no subscribers")
				return
			}
			h.tick(ctx)
		}
	}
}

// idleStop reports whether the registry is empty at tick time, clearing
// the lifecycle flag if so. This covers the race where the last
// unsubscribe lands between two timer fires: the poller turns itself off
// rather than relying solely on Remove.
func (h *Hub) idleStop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) > 0 {
		return false
	}
	h.stopLocked()
	return true
}

// tick runs one poll cycle: query all sources concurrently for records
// changed after the cursor, broadcast the results in source order, then
// advance the cursor to the tick's start time.
//
// The cursor advances to the time captured before the queries were
// issued, not after they completed, so a record created mid-query is
// picked up by the next tick rather than skipped.
func (h *Hub) tick(ctx context.Context) {
	start := h.now()

	h.mu.Lock()
	cursor := h.cursor
	h.mu.Unlock()

	results := make([][]any, len(h.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range h.sources {
		i, src := i, src
		g.Go(func() error {
			recs, err := src.Changes(gctx, cursor, h.limit)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Name(), err)
			}
			results[i] = recs
			return nil
		})
	}

	// A failed source aborts the whole tick: the cursor stays put and the
	// same window is retried on the next interval. Duplicate delivery is
	// acceptable; skipped records are not.
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Time("cursor", cursor).Msg("poll tick failed, cursor not advanced")
		return
	}

	total := 0
	for i, src := range h.sources {
		for _, rec := range results[i] {
			h.Broadcast(event.New(event.Kind(src.Name()), rec, start))
			total++
		}
	}
	if total > 0 {
		log.Debug().Int("events", total).Time("since", cursor).Msg("poll tick delivered")
	}

	h.mu.Lock()
	if start.After(h.cursor) {
		h.cursor = start
	}
	h.mu.Unlock()
}

// Broadcast serializes the event once and writes it to every registered
// subscriber in registration order. A failed write removes that
// subscriber without aborting delivery to the rest. Subscribers that join
// mid-broadcast are not guaranteed this event.
func (h *Hub) Broadcast(ev event.Event) {
	data, err := ev.Encode()
	if err != nil {
		log.Err(err).Str("kind", string(ev.Kind)).Msg("event encode failed")
		return
	}

	h.mu.Lock()
	subs := make([]Subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Send(data); err != nil {
			log.Debug().Err(err).Str("subscriber", sub.ID()).Msg("dropping broken subscriber")
			h.Remove(sub)
		}
	}
}
