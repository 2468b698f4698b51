package event

import (
	"encoding/json"
	"testing"
	"time"
)

func decode(t *testing.T, raw []byte) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("not valid JSON: %v (%s)", err, raw)
	}
	return m
}

func TestEncodeEnvelope(t *testing.T) {
	ts := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	ev := New(KindStorm, map[string]any{"id": "storm-1", "county": "Tarrant"}, ts)

	raw, err := ev.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	m := decode(t, raw)
	for _, key := range []string{"type", "data", "timestamp"} {
		if _, ok := m[key]; !ok {
			t.Errorf("envelope missing %q key", key)
		}
	}
	if len(m) != 3 {
		t.Errorf("envelope has %d keys, want exactly 3", len(m))
	}

	var kind string
	if err := json.Unmarshal(m["type"], &kind); err != nil || kind != "storm" {
		t.Errorf("type = %q (%v), want storm", kind, err)
	}

	// Timestamps go out as ISO-8601 strings.
	var stamp string
	if err := json.Unmarshal(m["timestamp"], &stamp); err != nil {
		t.Fatalf("timestamp not a string: %v", err)
	}
	parsed, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		t.Fatalf("timestamp %q not RFC 3339: %v", stamp, err)
	}
	if !parsed.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", parsed, ts)
	}
}

func TestConnectedPayload(t *testing.T) {
	raw, err := Connected(3, time.Now()).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type string `json:"type"`
		Data struct {
			Message     string `json:"message"`
			ClientCount int    `json:"clientCount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "connected" {
		t.Errorf("type = %q, want connected", env.Type)
	}
	if env.Data.Message == "" {
		t.Error("connected event has empty message")
	}
	if env.Data.ClientCount != 3 {
		t.Errorf("clientCount = %d, want 3", env.Data.ClientCount)
	}
}

func TestHeartbeatPayload(t *testing.T) {
	raw, err := Heartbeat(2, time.Now()).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type string `json:"type"`
		Data struct {
			Ping        bool `json:"ping"`
			ClientCount int  `json:"clientCount"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != "heartbeat" {
		t.Errorf("type = %q, want heartbeat", env.Type)
	}
	if !env.Data.Ping {
		t.Error("heartbeat payload ping = false, want true")
	}
	if env.Data.ClientCount != 2 {
		t.Errorf("clientCount = %d, want 2", env.Data.ClientCount)
	}
}
