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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/actions"
	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/internal/storage/sqlite"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the passkey server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the passkey authentication server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

// stores bundles the persistence layer behind the configured backend.
type stores struct {
	accounts    passkey.AccountStore
	credentials passkey.CredentialStore
	ceremonies  passkey.CeremonyStore
	sessions    session.Store
	sqlite      *sqlite.Store
}

func openStores(cfg *config.Config) (*stores, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return &stores{
			accounts:    store.Accounts(),
			credentials: store.Credentials(),
			ceremonies:  store.Ceremonies(),
			sessions:    store.Sessions(),
			sqlite:      store,
		}, nil
	case "memory":
		creds := passkey.NewMemoryCredentialStore()
		return &stores{
			accounts:    passkey.NewMemoryAccountStore(creds),
			credentials: creds,
			ceremonies:  passkey.NewMemoryCeremonyStore(),
			sessions:    session.NewMemoryStore(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func (s *stores) Close() error {
	if s.sqlite != nil {
		return s.sqlite.Close()
	}
	return nil
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	logger.Info("Starting passkey server",
		"version", Version,
		"config", configPath,
		"rp_id", cfg.WebAuthn.RPID,
		"storage", cfg.Storage.Backend)

	db, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	passkeys, err := passkey.NewService(passkey.ServiceParams{
		Config:      &cfg.WebAuthn,
		Accounts:    db.accounts,
		Credentials: db.credentials,
		Ceremonies:  db.ceremonies,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create passkey service: %w", err)
	}

	sessions, err := session.NewService(session.ServiceParams{
		Store: db.sessions,
		TTL:   cfg.Session.TTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}

	var tokens *session.TokenGenerator
	if cfg.Tokens.Enabled {
		tokens, err = session.NewTokenGenerator(&session.TokenGeneratorConfig{
			Issuer:    cfg.Tokens.Issuer,
			Audience:  []string{cfg.Tokens.Audience},
			ExpiresIn: cfg.Tokens.ExpiresIn,
		})
		if err != nil {
			return fmt.Errorf("failed to create token generator: %w", err)
		}
	}

	acts, err := actions.NewService(actions.ServiceParams{
		Sessions:    sessions,
		Accounts:    db.accounts,
		Credentials: db.credentials,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create action service: %w", err)
	}

	checker := health.NewChecker()
	if db.sqlite != nil {
		sqliteDB := db.sqlite.DB()
		checker.RegisterCheck("sqlite", func(ctx context.Context) health.CheckResult {
			if err := sqliteDB.PingContext(ctx); err != nil {
				return health.CheckResult{
					Name:   "sqlite",
					Status: health.StatusUnhealthy,
					Error:  err.Error(),
				}
			}
			return health.CheckResult{Name: "sqlite", Status: health.StatusHealthy}
		})
	}

	tlsConfig, err := cfg.LoadTLSConfig()
	if err != nil {
		return err
	}

	server, err := rest.NewServer(&rest.Config{
		Port:     cfg.Server.Port,
		Passkeys: passkeys,
		Sessions: sessions,
		Actions:  acts,
		Accounts: db.accounts,
		Tokens:   tokens,
		Health:   checker,
		RateLimit: &ratelimit.Config{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.Burst,
		},
		Version:   Version,
		TLSConfig: tlsConfig,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runJanitor(ctx, logger, cfg.Session.CleanupInterval, db.ceremonies, sessions)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	checker.MarkStarted()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

// runJanitor periodically evicts expired ceremonies and sessions.
func runJanitor(ctx context.Context, logger *slog.Logger, interval time.Duration,
	ceremonies passkey.CeremonyStore, sessions *session.Service) {

	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := ceremonies.DeleteExpired(ctx); err != nil {
				logger.Warn("Ceremony cleanup failed", "error", err)
			} else if n > 0 {
				logger.Debug("Evicted expired ceremonies", "count", n)
			}
			if n, err := sessions.Cleanup(ctx); err != nil {
				logger.Warn("Session cleanup failed", "error", err)
			} else if n > 0 {
				logger.Debug("Evicted expired sessions", "count", n)
			}
		}
	}
}
