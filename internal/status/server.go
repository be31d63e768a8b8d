// Package status exposes the HTTP surface for operators: aggregate
// health, a detailed state snapshot, Prometheus metrics, and the
// manual reset affordance for the terminal failure mode.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renderguard/renderguard/internal/guard/recovery"
	"github.com/renderguard/renderguard/internal/render/engine"
	"github.com/renderguard/renderguard/internal/render/scheduler"
)

// State is the aggregate system state.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded" // breaker tripped or engine not ready
	StateCritical State = "critical" // error budget exhausted
)

// Guard exposes error accounting to the server.
type Guard interface {
	Snapshot(n int) recovery.Snapshot
	Reset()
}

// Renderer exposes render accounting to the server.
type Renderer interface {
	Stats() scheduler.Stats
}

// Readiness exposes the gate state to the server.
type Readiness interface {
	IsReady() bool
}

// Report is the detailed snapshot served at /status.
type Report struct {
	State       State             `json:"state"`
	EngineReady bool              `json:"engine_ready"`
	Guard       recovery.Snapshot `json:"guard"`
	Render      scheduler.Stats   `json:"render"`
	Engine      *engine.Stats     `json:"engine,omitempty"`
}

// Server provides HTTP endpoints for monitoring and manual recovery.
type Server struct {
	guard       Guard
	renderer    Renderer
	gate        Readiness
	engineStats func() engine.Stats // nil when the adapter has no accounting
	server      *http.Server
}

// NewServer creates a status server listening on port.
func NewServer(guard Guard, renderer Renderer, gate Readiness, engineStats func() engine.Stats, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		guard:       guard,
		renderer:    renderer,
		gate:        gate,
		engineStats: engineStats,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

func (s *Server) report() Report {
	snap := s.guard.Snapshot(10)

	state := StateHealthy
	switch {
	case snap.Critical:
		state = StateCritical
	case snap.BreakerTripped || !s.gate.IsReady():
		state = StateDegraded
	}

	report := Report{
		State:       state,
		EngineReady: s.gate.IsReady(),
		Guard:       snap,
		Render:      s.renderer.Stats(),
	}
	if s.engineStats != nil {
		stats := s.engineStats()
		report.Engine = &stats
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.report()

	w.Header().Set("Content-Type", "application/json")
	if report.State == StateCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": string(report.State)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.report())
}

// handleReset is the "attempt to continue" action: it clears the
// critical state, zeroes counters, and releases any breaker trip.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.guard.Reset()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"reset": true})
}
