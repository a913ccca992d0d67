// Universe Tracker - Marketing Funnel Event Pipeline
// Copyright 2026 evakv0th
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/evakv0th/universe-test-monorepo

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/evakv0th/universe-test-monorepo/internal/logging"
	"github.com/evakv0th/universe-test-monorepo/internal/reports"
	"github.com/evakv0th/universe-test-monorepo/internal/storage"
	"github.com/evakv0th/universe-test-monorepo/internal/stream"
)

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address.
	// Env: HTTP_ADDR (default: :3000)
	Addr string `koanf:"addr"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// MaxBodyBytes caps the ingest request body size.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// DefaultConfig returns production defaults for the HTTP server.
func DefaultConfig() Config {
	return Config{
		Addr:            ":3000",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxBodyBytes:    10 << 20,
	}
}

// eventPublisher is the gateway-side contract the ingest handler needs.
type eventPublisher interface {
	Publish(ctx context.Context, body []byte) (stream.PublishSummary, error)
}

// reportSource is the reporter-side contract the report handlers need.
type reportSource interface {
	EventStats(ctx context.Context, q reports.EventStatsQuery) ([]storage.EventStatRow, error)
	Revenue(ctx context.Context, q reports.RevenueQuery) (*reports.RevenueReport, error)
	Demographics(ctx context.Context, q reports.DemographicsQuery) (*reports.DemographicsReport, error)
}

// HealthFunc reports per-dependency health for the readiness endpoint.
type HealthFunc func(ctx context.Context) map[string]string

// Server is the HTTP surface of the pipeline: the ingest gateway, the
// report endpoints, health and metrics.
type Server struct {
	cfg       Config
	router    chi.Router
	publisher eventPublisher
	reporter  reportSource
	health    HealthFunc
	logger    zerolog.Logger

	httpServer *http.Server
}

// NewServer wires the routes. Any of publisher, reporter or health may
// be nil; the matching routes then answer 503.
func NewServer(cfg Config, publisher eventPublisher, reporter reportSource, health HealthFunc) *Server {
	s := &Server{
		cfg:       cfg,
		publisher: publisher,
		reporter:  reporter,
		health:    health,
		logger:    logging.With().Str("component", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Post("/events", s.handlePublish)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/events", s.handleEventStats)
		r.Get("/revenue", s.handleRevenue)
		r.Get("/demographics", s.handleDemographics)
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler exposes the routed mux.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
