// Package http exposes the service's operational endpoints and the archived
// score records over HTTP.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adrian2901/bloomwatch/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ScoreArchive reads back the score records persisted by previous runs.
type ScoreArchive interface {
	ClimateScores(ctx context.Context) ([]domain.ClimateScore, error)
	BloomScores(ctx context.Context) ([]domain.BloomScore, error)
}

// Server exposes health, readiness, metrics, and score endpoints.
type Server struct {
	httpServer *http.Server
	archive    ScoreArchive
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /scores/{model} routes.
func NewServer(addr string, ready ReadinessChecker, archive ScoreArchive, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		archive: archive,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /scores/climate", s.handleClimateScores)
	mux.HandleFunc("GET /scores/bloom", s.handleBloomScores)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleClimateScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.archive.ClimateScores(r.Context())
	if err != nil {
		s.logger.Error("read climate scores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "score archive unavailable"})
		return
	}
	if scores == nil {
		scores = []domain.ClimateScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (s *Server) handleBloomScores(w http.ResponseWriter, r *http.Request) {
	scores, err := s.archive.BloomScores(r.Context())
	if err != nil {
		s.logger.Error("read bloom scores", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "score archive unavailable"})
		return
	}
	if scores == nil {
		scores = []domain.BloomScore{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}
