// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package api exposes the connector's admin surface: health and
// readiness probes, Prometheus metrics, sync status and a manual sync
// trigger. The connector's real output is the entity graph; this
// surface exists for operators, not for data consumers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/middleware"
)

// SyncController is the sync manager surface the admin API needs.
type SyncController interface {
	Initialized() bool
	LastSyncTime() time.Time
	TriggerSync()
}

// Server is the admin HTTP server.
type Server struct {
	httpServer *http.Server
	controller SyncController
	startedAt  time.Time
}

// NewServer builds the admin server and its router.
func NewServer(cfg *config.ServerConfig, controller SyncController) *Server {
	s := &Server{
		controller: controller,
		startedAt:  time.Now(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync/trigger", s.handleSyncTrigger)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
	}
	return s
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	logging.Info().Str("addr", s.httpServer.Addr).Msg("Admin server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// requestLogger logs one structured line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
