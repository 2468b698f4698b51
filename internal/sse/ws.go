package sse

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stormcrm/backend/internal/event"
	"github.com/stormcrm/backend/internal/notify"
)

// wsClient adapts a WebSocket connection to the hub's Subscriber
// interface. Same feed as /events, different framing: each event is one
// text message carrying the JSON envelope, no SSE prefix.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(p []byte) error {
	select {
	case c.send <- p:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close ends the writePump, which closes the socket on its way out.
func (c *wsClient) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump drains the send buffer onto the wire and emits this
// connection's heartbeats. A write error unregisters the client.
func (c *wsClient) writePump(hub *notify.Hub, heartbeatInterval time.Duration) {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			// Dropped by the hub. Closing the socket (deferred above)
			// tells the client to reconnect rather than sit on a feed
			// that will never carry another event.
			return
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				hub.Remove(c)
				return
			}
		case <-ticker.C:
			hb, err := event.Heartbeat(hub.Size(), time.Now()).Encode()
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, hb); err != nil {
				hub.Remove(c)
				return
			}
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Err(err).Str("remote", r.RemoteAddr).Msg("ws upgrade failed")
		return
	}

	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, s.cfg.Stream.SendBuffer),
		done: make(chan struct{}),
	}
	s.hub.Add(c)
	go c.writePump(s.hub, s.cfg.Stream.HeartbeatInterval)

	// Read loop exists only to observe the close; inbound frames are
	// ignored.
	go func() {
		defer func() {
			s.hub.Remove(c)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
