package sse

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stormcrm/backend/internal/event"
)

// errSlowConsumer marks a subscriber whose outbound buffer filled up. The
// hub treats it like any other broken channel and prunes the subscriber.
var errSlowConsumer = errors.New("send buffer full")

// streamConn adapts one SSE connection to the hub's Subscriber interface.
// Send never blocks: the handler goroutine drains the buffer and writes to
// the wire, and a full buffer means the client can't keep up.
type streamConn struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newStreamConn(buffer int) *streamConn {
	return &streamConn{
		id:   uuid.NewString(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *streamConn) ID() string { return c.id }

func (c *streamConn) Send(p []byte) error {
	select {
	case c.send <- p:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close ends the handler loop. The send channel stays open because the
// hub may race a Send against the removal; only done is closed.
func (c *streamConn) Close() {
	c.once.Do(func() { close(c.done) })
}

// handleEvents serves the SSE stream. The connection is registered with
// the hub for the lifetime of the request; the client's disconnect
// (request context cancellation) unregisters it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Event-stream contract: no caching, no intermediary buffering.
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := newStreamConn(s.cfg.Stream.SendBuffer)
	s.hub.Add(conn)
	defer s.hub.Remove(conn)

	// Keep-alive is per-connection and longer-period than the shared
	// poll; it never goes through the hub's fan-out.
	heartbeat := time.NewTicker(s.cfg.Stream.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.done:
			// The hub dropped this subscriber (slow consumer or failed
			// write). Ending the handler closes the connection so the
			// client's EventSource reconnects instead of idling on
			// heartbeats with no data.
			return
		case msg := <-conn.send:
			if err := writeFrame(w, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			hb, err := event.Heartbeat(s.hub.Size(), time.Now()).Encode()
			if err != nil {
				log.Err(err).Msg("encode heartbeat")
				continue
			}
			if err := writeFrame(w, hb); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeFrame flattens one encoded event into SSE framing: "data: <JSON>\n\n".
func writeFrame(w http.ResponseWriter, msg []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", msg)
	return err
}
