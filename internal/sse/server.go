// Package sse exposes the live update stream over HTTP: an SSE endpoint,
// a WebSocket endpoint carrying the same events, and small ops endpoints
// for stream status and process health.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/stormcrm/backend/internal/config"
	"github.com/stormcrm/backend/internal/notify"
)

type Server struct {
	cfg            *config.Config
	hub            *notify.Hub
	frontend       http.Handler
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
}

func NewServer(cfg *config.Config, hub *notify.Hub, frontend http.Handler) *Server {
	s := &Server{
		cfg:            cfg,
		hub:            hub,
		frontend:       frontend,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/events", s.handleEvents)
	router.HandlerFunc(http.MethodGet, "/ws", s.handleWS)
	router.HandlerFunc(http.MethodGet, "/api/stream/status", s.handleStatus)
	router.HandlerFunc(http.MethodGet, "/healthz", s.handleHealth)

	if s.frontend != nil {
		router.NotFound = s.frontend
	}

	return securityHeaders(router)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hub.Status())
}

type healthResponse struct {
	Status     string        `json:"status"`
	Uptime     string        `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	CPUPercent float64       `json:"cpuPercent"`
	MemoryRSS  uint64        `json:"memoryRss"`
	Stream     notify.Status `json:"stream"`
}

// handleHealth reports process vitals plus the stream snapshot. Unlike
// /api/stream/status it is unauthenticated so load balancers can probe it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Stream:     s.hub.Status(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			resp.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			resp.MemoryRSS = mem.RSS
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Server.AuthToken
	if token == "" {
		return true
	}

	if r.URL.Query().Get("token") == token {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == token {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

// NewHTTPServer builds the http.Server so the caller owns its lifecycle;
// main shuts it down on SIGINT/SIGTERM via Shutdown.
func NewHTTPServer(host string, port int, handler http.Handler) *http.Server {
	addr := fmt.Sprintf("%s:%d", host, port)
	return &http.Server{Addr: addr, Handler: handler}
}
