// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api is the HTTP surface used by the UI collaborator: scans,
// stream status, playback sessions and the event stream.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamcheck/internal/api/middleware"
	"github.com/ManuGH/streamcheck/internal/bus"
	"github.com/ManuGH/streamcheck/internal/health"
	"github.com/ManuGH/streamcheck/internal/log"
	"github.com/ManuGH/streamcheck/internal/playback"
	"github.com/ManuGH/streamcheck/internal/relay"
	"github.com/ManuGH/streamcheck/internal/scan"
	"github.com/ManuGH/streamcheck/internal/service"
	"github.com/ManuGH/streamcheck/internal/store"
)

// APIPrefix is the versioned API root.
const APIPrefix = "/api/v1"

const defaultKeepalive = 25 * time.Second

// Config tunes the HTTP surface.
type Config struct {
	CORSOrigins []string
	// RelayRateLimit is relay requests per minute per client IP; 0 disables it.
	RelayRateLimit int
	EnableTracing  bool
	Version        string
	// SSEKeepalive is the comment interval on idle event streams.
	SSEKeepalive time.Duration
}

// Deps are the components served over HTTP. Service, Relay and Health are
// optional; their routes are skipped when nil.
type Deps struct {
	Scans    *scan.Manager
	Store    *store.Store
	Bus      *bus.MemoryBus
	Playback *playback.Manager
	Service  *service.Service
	Relay    http.Handler
	Health   *health.Manager
}

// Server routes HTTP requests to the streamcheck components.
type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger
}

// New builds a Server.
func New(cfg Config, deps Deps) *Server {
	if cfg.SSEKeepalive <= 0 {
		cfg.SSEKeepalive = defaultKeepalive
	}
	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("api"),
	}
}

// Handler returns the root handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	stack := middleware.StackConfig{
		AllowedOrigins: s.cfg.CORSOrigins,
		EnableMetrics:  true,
		EnableLogging:  true,
	}
	if s.cfg.EnableTracing {
		stack.TracingService = "streamcheck/http"
	}
	r := middleware.NewRouter(stack)

	r.Handle("/metrics", promhttp.Handler())
	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	if s.deps.Service != nil {
		s.deps.Service.Mount(r)
	}
	if s.deps.Relay != nil {
		r.With(middleware.RelayRateLimit(s.cfg.RelayRateLimit)).Handle(relay.Path, s.deps.Relay)
	}

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(middleware.CSRFProtection(s.cfg.CORSOrigins))
		r.Use(middleware.APIRateLimit())

		r.Get("/version", s.handleVersion)

		r.Post("/scans", s.handleStartScan)
		r.Get("/scans/current", s.handleCurrentScan)
		r.Delete("/scans/current", s.handleCancelScan)
		r.Get("/scans/last", s.handleLastReport)
		r.Get("/categories", s.handleCategories)
		r.Post("/validate", s.handleValidate)

		r.Get("/status", s.handleStatusSnapshot)
		r.Delete("/status", s.handleClearAll)
		r.Get("/status/*", s.handleStatusGet)
		r.Delete("/status/*", s.handleStatusClear)

		r.Get("/events", s.handleEvents)

		r.Post("/playback", s.handleOpenPlayback)
		r.Get("/playback", s.handleListPlayback)
		r.Get("/playback/{id}", s.handleGetPlayback)
		r.Post("/playback/{id}/error", s.handlePlaybackError)
		r.Post("/playback/{id}/refresh", s.handlePlaybackRefresh)
		r.Delete("/playback/{id}", s.handleClosePlayback)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed")
	})
	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.cfg.Version})
}
