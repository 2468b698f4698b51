package sse

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stormcrm/backend/internal/config"
	"github.com/stormcrm/backend/internal/notify"
)

// newTestServer wires a server around a sourceless hub. Transport tests
// don't need poll ticks, so the poll interval is effectively infinite.
func newTestServer(mutate func(*config.Config)) (*Server, *notify.Hub) {
	cfg := config.Default()
	cfg.Stream.HeartbeatInterval = 30 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}
	hub := notify.NewHub(nil, notify.Options{PollInterval: time.Hour})
	return NewServer(cfg, hub, nil), hub
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(inner).ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'self'",
	}

	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

func TestStatusRequiresAuth(t *testing.T) {
	s, _ := newTestServer(func(cfg *config.Config) {
		cfg.Server.AuthToken = "tok"
	})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stream/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/stream/status", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", resp.StatusCode)
	}

	var status notify.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Subscribers != 0 || status.Polling {
		t.Errorf("fresh hub status = %+v, want idle", status)
	}
}

func TestStatusQueryToken(t *testing.T) {
	s, _ := newTestServer(func(cfg *config.Config) {
		cfg.Server.AuthToken = "tok"
	})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stream/status?token=tok")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("query-token status = %d, want 200", resp.StatusCode)
	}
}

// Graceful exit: hub.Shutdown ends the long-lived stream handlers, after
// which http.Server.Shutdown can drain instead of waiting out its timeout.
func TestShutdownDrainsStreamConnections(t *testing.T) {
	s, hub := newTestServer(nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &http.Server{Handler: s.Routes()}
	go srv.Serve(ln)

	resp, err := http.Get("http://" + ln.Addr().String() + "/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && hub.Size() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Size() != 1 {
		t.Fatal("stream subscriber never registered")
	}

	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown did not drain: %v", err)
	}
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	s, _ := newTestServer(func(cfg *config.Config) {
		cfg.Server.AuthToken = "tok"
	})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Status string        `json:"status"`
		Stream notify.Status `json:"stream"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("health status = %q, want ok", health.Status)
	}
}
