// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

/*
Package api wires together the HTTP router, middleware chain, and the session
handlers for both scopes into a runnable [http.Server].

Architecture:

  - This package is the topmost transport boundary of the gateway.
  - It acts as the central composition root for the chi router.
  - Only this package and cmd/sessiond are allowed to import net/http server
    primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/basms/sessiond/internal/platform/config"
	"github.com/basms/sessiond/internal/platform/constants"
	"github.com/basms/sessiond/internal/platform/middleware"
	"github.com/basms/sessiond/internal/session"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups the gateway's HTTP handler sets.
//
// # Usage
//
// A new scope adds a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Main handles the main application's session lifecycle.
	Main *session.Handler

	// EContract handles the eContract surface's session lifecycle.
	EContract *session.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers both scopes' route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// # Application API
	// One route group per scope; the scope tag flows into every log line.
	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(main chi.Router) {
			main.Use(middleware.Scope("main"))
			main.Mount("/session", h.Main.Routes())
		})

		api.Group(func(econtract chi.Router) {
			econtract.Use(middleware.Scope("eContract"))
			econtract.Mount("/econtract/session", h.EContract.Routes())
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
