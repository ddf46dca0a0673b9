// Copyright (c) 2026 BASMS. All rights reserved.
// Author: platform@basms.vn

// Command sessiond is the entry point for the BASMS session gateway.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables (.env honored in dev).
//  3. Open the credential backend (file, Redis, or memory).
//  4. Connect to PostgreSQL and run migrations when the audit trail is enabled.
//  5. Wire both session scopes (main + eContract) and their HTTP handlers.
//  6. Restore persisted sessions and re-arm the renewal timers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/basms/sessiond/internal/api"
	"github.com/basms/sessiond/internal/platform/clock"
	"github.com/basms/sessiond/internal/platform/config"
	"github.com/basms/sessiond/internal/platform/constants"
	"github.com/basms/sessiond/internal/platform/migration"
	pgstore "github.com/basms/sessiond/internal/platform/postgres"
	redisstore "github.com/basms/sessiond/internal/platform/redis"
	"github.com/basms/sessiond/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[sessiond] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	// A local .env is a developer convenience; its absence is not an error.
	if err := godotenv.Load(); err == nil {
		log.Info("dotenv_loaded")
	}

	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("credentials_backend", cfg.CredentialsBackend),
		slog.Bool("audit_enabled", cfg.AuditEnabled()),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	health := api.HealthDependencies{}

	// ── 3. Credential Backend ─────────────────────────────────────────────
	var kv session.KeyValue

	switch cfg.CredentialsBackend {
	case "redis":
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		kv = session.NewRedisKeyValue(rdb)
		health.CheckCredentialStore = func() error {
			return redisstore.Ping(context.Background(), rdb)
		}

	case "memory":
		kv = session.NewMemoryKeyValue()

	default:
		fileKV, err := session.NewFileKeyValue(cfg.CredentialsFilePath, cfg.SessionSecret)
		must(log, err, "open file credential store")
		kv = fileKV
	}

	// ── 4. Audit Trail (optional) ─────────────────────────────────────────
	var audit session.Recorder = session.NoopRecorder{}

	if cfg.AuditEnabled() {
		pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
		must(log, err, "connect to postgres")
		defer func() {
			log.Info("closing postgres pool")
			pool.Close()
		}()

		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

		audit = session.NewPostgresRecorder(pool)
		health.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	}

	// ── 5. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(health, log)

	// ── 6. Scope Wiring ───────────────────────────────────────────────────
	systemClock := clock.New()

	mainHandler := wireScope(session.MainScope(cfg.BackendBaseURL), kv, audit, cfg, systemClock, log)
	econtractHandler := wireScope(session.EContractScope(cfg.EContractBaseURL), kv, audit, cfg, systemClock, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Main:      mainHandler,
		EContract: econtractHandler,
	}

	server := api.NewServer(startupCtx, cfg, log, handlers)

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// wireScope assembles the full session stack for one scope and bootstraps it:
// persisted sessions are restored and the renewal timer re-armed before the
// server accepts traffic.
func wireScope(
	scope session.Scope,
	kv session.KeyValue,
	audit session.Recorder,
	cfg *config.Config,
	systemClock clock.Clock,
	log *slog.Logger,
) *session.Handler {
	store := session.NewCredentialStore(kv, scope.KeyPrefix, systemClock)
	client := session.NewClient(scope.BaseURL, log, systemClock)
	manager := session.NewManager(scope, store, client, audit, systemClock, log)
	sessionContext := session.NewSessionContext(
		scope, store, client, manager, session.NewMemoryKeyValue(), audit, cfg.DeniedRoles(), log,
	)

	sessionContext.Initialize(context.Background())

	return session.NewHandler(sessionContext, audit)
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
