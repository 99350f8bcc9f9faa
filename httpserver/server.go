// Package httpserver exposes liveness and the latest cycle report over HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vinted-monitor/models"
	"vinted-monitor/utils"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReportSource returns the most recent cycle report, or nil before the
// first cycle completes.
type ReportSource interface {
	Latest() *models.CycleReport
}

const pingTimeout = 2 * time.Second

// Server serves /healthz and /stats.
type Server struct {
	db      Pinger
	reports ReportSource
	router  *chi.Mux
	http    *http.Server
	logger  *utils.Logger
}

// New creates a Server listening on addr once Start is called.
func New(addr string, db Pinger, reports ReportSource, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &Server{
		db:      db,
		reports: reports,
		router:  chi.NewRouter(),
		logger:  logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/stats", s.handleStats)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("[http] Listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[http] Server stopped: %v", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpserver: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("[http] Health check failed: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db: not ok"))
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	report := s.reports.Latest()
	if report == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Error("[http] Encode stats: %v", err)
	}
}
