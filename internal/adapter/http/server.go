package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ois-incident-etl/internal/domain"
	"github.com/couchcryptid/ois-incident-etl/internal/pipeline"
)

// IncidentLister returns the currently stored incidents.
type IncidentLister interface {
	ListIncidents(ctx context.Context) ([]domain.Incident, error)
}

// SummaryProvider exposes the most recent completed load.
type SummaryProvider interface {
	LastReport() (pipeline.Report, bool)
}

// Server exposes health, readiness, metrics, and the incident API.
type Server struct {
	httpServer *http.Server
	incidents  IncidentLister
	summary    SummaryProvider
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /api/incidents, and /api/summary routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, incidents IncidentLister, summary SummaryProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		incidents: incidents,
		summary:   summary,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/incidents", s.handleIncidents)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.incidents.ListIncidents(r.Context())
	if err != nil {
		s.logger.Error("list incidents failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list incidents"})
		return
	}
	w.Header().Set("Cache-Control", "max-age=60")
	sharedobs.WriteJSON(w, http.StatusOK, newFeatureCollection(incidents))
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.summary.LastReport()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no load yet"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

// AllReady reports ready only when every checker does.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readinessChain(checkers)
}

type readinessChain []sharedobs.ReadinessChecker

func (c readinessChain) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, checker := range c {
		if err := checker.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
