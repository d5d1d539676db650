// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/internal/actions"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// Server is the application HTTP server.
type Server struct {
	server   *http.Server
	router   chi.Router
	port     int
	version  string
	passkeys *passkey.Service
	sessions *session.Service
	tokens   *session.TokenGenerator
	actions  *actions.Service
	accounts passkey.AccountStore
	checker  *health.Checker
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// Config holds the HTTP server configuration.
type Config struct {
	// Port is the HTTP port to listen on (default: 8080)
	Port int

	// Passkeys runs the WebAuthn ceremonies (required).
	Passkeys *passkey.Service

	// Sessions issues and resolves sessions (required).
	Sessions *session.Service

	// Actions executes account mutations (required).
	Actions *actions.Service

	// Accounts is the account persistence layer (required).
	Accounts passkey.AccountStore

	// Tokens mints and verifies bearer API tokens (optional).
	Tokens *session.TokenGenerator

	// Health reports liveness for /healthz (optional).
	Health *health.Checker

	// RateLimit throttles ceremony begin endpoints (optional).
	RateLimit *ratelimit.Config

	// Version is reported by /healthz.
	Version string

	// TLSConfig enables HTTPS when set.
	TLSConfig *tls.Config

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates the application server and wires its routes.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey service is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if cfg.Actions == nil {
		return nil, fmt.Errorf("action service is required")
	}
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := &Server{
		port:     cfg.Port,
		version:  cfg.Version,
		passkeys: cfg.Passkeys,
		sessions: cfg.Sessions,
		tokens:   cfg.Tokens,
		actions:  cfg.Actions,
		accounts: cfg.Accounts,
		checker:  cfg.Health,
		limiter:  ratelimit.New(cfg.RateLimit),
		logger:   logger,
	}

	router := server.setupRouter()
	server.router = router

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		TLSConfig:    cfg.TLSConfig,
	}

	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(s.SessionMiddleware())

	// Operational endpoints (allow-listed)
	r.Get("/healthz", s.HealthHandler)
	r.Head("/healthz", s.HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Ceremony endpoints (allow-listed; rate limited at begin)
	ceremonies := passkeyhttp.NewHandler(s.passkeys, s.sessions).
		WithLogger(s.logger).
		WithTokenGenerator(s.tokens)
	r.Route("/api/v1/passkey", func(r chi.Router) {
		r.Use(ratelimit.Middleware(s.limiter))
		passkeyhttp.MountChi(r, ceremonies)
	})

	// Protected account API. The edge checkpoint already ran; every handler
	// still re-derives its own decision.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/profile", s.ProfileHandler)
		r.Get("/settings", s.GetSettingsHandler)
		r.Put("/settings", s.UpdateSettingsHandler)
		r.Get("/credentials", s.ListCredentialsHandler)
		r.Delete("/credentials/{id}", s.RevokeCredentialHandler)
		r.Post("/signout", s.SignOutHandler)

		r.Post("/actions/update-profile", s.UpdateProfileActionHandler)
		r.Post("/actions/delete-account", s.DeleteAccountActionHandler)
		r.Post("/actions/user-stats", s.UserStatsActionHandler)
	})

	return r
}

// Handler returns the configured router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	if s.server.TLSConfig != nil {
		s.logger.Info("starting HTTPS server", "port", s.port)
		if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down server")

	s.limiter.Stop()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}
