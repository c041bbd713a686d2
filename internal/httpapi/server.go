// Package httpapi serves the daemon's read-only metrics endpoint: a JSON
// snapshot at /api/metrics and a static dashboard at / and /dashboard.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ppiankov/filewatchd/internal/metrics"
	"github.com/ppiankov/filewatchd/internal/registry"
	"github.com/ppiankov/filewatchd/internal/watcher"
)

// ioTimeout bounds every connection's read and write.
const ioTimeout = 1 * time.Second

// FolderStatsProvider supplies a live read of every folder task's
// counters, without the HTTP endpoint depending on the supervisor's full
// lifecycle surface.
type FolderStatsProvider interface {
	Stats() []watcher.Stats
}

// Server is the metrics HTTP endpoint. It never mutates core state: every
// handler only reads from the registry, the metrics set, and the
// folder-stats provider.
type Server struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
	folders  FolderStatsProvider

	mu      sync.Mutex
	httpSrv *http.Server
	addr    string

	running atomic.Bool
}

// New builds a Server; it does not start listening until Start is called.
func New(reg *registry.Registry, m *metrics.Metrics, folders FolderStatsProvider) *Server {
	return &Server{registry: reg, metrics: m, folders: folders}
}

// Start binds the listener on port and begins serving in the background.
// Returns the actual listening address.
func (s *Server) Start(port uint16) (string, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleDashboard)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("/", s.handleNotFound)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return "", fmt.Errorf("metrics listen :%d: %w", port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}
	addr := s.addr
	s.mu.Unlock()

	s.running.Store(true)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()

	slog.Info("metrics endpoint started", "addr", addr)
	return addr, nil
}

// Stop shuts the server down within a 2s budget.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.running.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Addr returns the listening address after Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/dashboard" {
		s.handleNotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboardHTML)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	body := render(s.registry, s.metrics, s.folders.Stats(), s.running.Load())

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		slog.Error("encode metrics snapshot failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found\n"))
}
