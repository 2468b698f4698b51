package event

import (
	"encoding/json"
	"time"
)

// Kind identifies the category of a stream event. The set is closed:
// domain kinds map one-to-one onto upstream sources, while Connected and
// Heartbeat are connection-local and never produced by a poll tick.
type Kind string

const (
	// KindStorm is a weather/storm record change.
	KindStorm Kind = "storm"
	// KindIntel is a market-intel item change.
	KindIntel Kind = "intel"
	// KindCustomer is a high-priority customer update.
	KindCustomer Kind = "customer"
	// KindHeartbeat is the per-connection keep-alive.
	KindHeartbeat Kind = "heartbeat"
	// KindConnected is the greeting sent once to a joining subscriber.
	KindConnected Kind = "connected"
)

// Event is one transient notification. Events are built fresh each poll
// tick, broadcast, and discarded -- nothing in this subsystem persists them.
type Event struct {
	Kind      Kind
	Payload   any
	Timestamp time.Time
}

// New builds an event stamped with ts.
func New(kind Kind, payload any, ts time.Time) Event {
	return Event{Kind: kind, Payload: payload, Timestamp: ts}
}

// envelope is the JSON wire shape. Timestamps marshal as ISO-8601 strings
// (RFC 3339), matching what stream consumers expect.
type envelope struct {
	Type      Kind      `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode serializes the event to its JSON wire form:
// {"type": <kind>, "data": <payload>, "timestamp": <ISO-8601>}.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(envelope{
		Type:      e.Kind,
		Data:      e.Payload,
		Timestamp: e.Timestamp.UTC(),
	})
}

// ConnectedPayload greets a subscriber that just joined.
type ConnectedPayload struct {
	Message     string `json:"message"`
	ClientCount int    `json:"clientCount"`
}

// HeartbeatPayload keeps a transport alive. ClientCount rides along so
// clients can display live viewer counts without another endpoint.
type HeartbeatPayload struct {
	Ping        bool `json:"ping"`
	ClientCount int  `json:"clientCount"`
}

// Connected builds the one-time greeting event for a new subscriber.
func Connected(clientCount int, ts time.Time) Event {
	return New(KindConnected, ConnectedPayload{
		Message:     "connected to live updates",
		ClientCount: clientCount,
	}, ts)
}

// Heartbeat builds a keep-alive event.
func Heartbeat(clientCount int, ts time.Time) Event {
	return New(KindHeartbeat, HeartbeatPayload{
		Ping:        true,
		ClientCount: clientCount,
	}, ts)
}
