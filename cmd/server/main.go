// Package main is the entry point for the BotVault server binary. It
// dispatches three subcommands over a plain switch on os.Args so the full CLI
// surface is readable in one place without a cobra dependency: serve (the
// default), migrate <up|down>, and version. The serve command runs
// auto-migration on startup so freshly deployed containers never need a
// separate migration step.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/botvault/botvault/internal/api"
	"github.com/botvault/botvault/internal/audit"
	"github.com/botvault/botvault/internal/auth"
	"github.com/botvault/botvault/internal/config"
	"github.com/botvault/botvault/internal/crypto"
	"github.com/botvault/botvault/internal/db"
	"github.com/botvault/botvault/internal/db/repositories"
	"github.com/botvault/botvault/internal/ratelimit"
	"github.com/botvault/botvault/internal/safego"
	"github.com/botvault/botvault/internal/telemetry"
	"github.com/botvault/botvault/internal/vault"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("BotVault v%s\n", version)
		return nil
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, version", command)
	}
}

func serve(cfg *config.Config) error {
	// Structured logging first, so everything after uses the configured
	// handler.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)
	config.OnLoggingChange(func(lc config.LoggingConfig) {
		telemetry.SetupLogger(lc.Format, lc.Level)
	})
	logger := slog.Default()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("connected to database",
		"host", cfg.Database.Host, "name", cfg.Database.Name)

	logger.Info("running database migrations")
	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		logger.Warn("failed to read migration version", "error", err)
	} else {
		logger.Info("database schema ready", "version", v, "dirty", dirty)
	}

	stopStats := make(chan struct{})
	safego.Go(func() { telemetry.PollDBStats(database, stopStats) })

	svc, cleanup, err := buildService(cfg, database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Metrics are served on a dedicated port so the scrape path never goes
	// through the public ingress or the API middleware chain.
	if cfg.Telemetry.MetricsEnabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		safego.Go(func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("starting metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		})
	}

	router := api.NewRouter(svc, database, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	safego.Go(func() {
		logger.Info("starting server", "addr", addr, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	close(stopStats)

	logger.Info("server stopped gracefully")
	return nil
}

// buildService assembles the vault service and its dependencies. The returned
// cleanup stops the limiter and closes the audit mirror.
func buildService(cfg *config.Config, database *sql.DB, logger *slog.Logger) (*vault.Service, func(), error) {
	cipher, err := crypto.NewEnvelopeCipher([]byte(cfg.Auth.MasterKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize envelope cipher: %w", err)
	}

	var limiter ratelimit.Limiter
	var stopLimiter func()
	switch cfg.RateLimit.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.Redis.Addr,
			Password: cfg.RateLimit.Redis.Password,
			DB:       cfg.RateLimit.Redis.DB,
		})
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window)
		stopLimiter = func() { client.Close() }
		logger.Info("rate limiter backend: redis", "addr", cfg.RateLimit.Redis.Addr)
	default:
		ml := ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Window)
		limiter = ml
		stopLimiter = ml.Stop
		logger.Info("rate limiter backend: memory")
	}

	mirror, err := audit.NewMirror(cfg.Audit.Mirror)
	if err != nil {
		stopLimiter()
		return nil, nil, fmt.Errorf("failed to initialize audit mirror: %w", err)
	}
	auditRepo := repositories.NewAuditRepository(database)
	recorder := audit.NewRecorder(auditRepo, mirror, logger)

	providers := make(map[string]*oauth2.Config, len(cfg.Connections.Providers))
	for name, p := range cfg.Connections.Providers {
		providers[name] = &oauth2.Config{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			Endpoint:     oauth2.Endpoint{AuthURL: p.AuthURL, TokenURL: p.TokenURL},
			Scopes:       p.Scopes,
		}
		logger.Info("oauth provider configured for refresh", "provider", name)
	}

	svc := vault.New(vault.Options{
		Users:       repositories.NewUserRepository(database),
		Credentials: repositories.NewCredentialRepository(database),
		Bots:        repositories.NewBotRepository(database),
		BotTokens:   repositories.NewBotTokenRepository(database),
		Permissions: repositories.NewPermissionRepository(database),
		LinkTokens:  repositories.NewLinkTokenRepository(database),
		AuditRepo:   auditRepo,

		Cipher:   cipher,
		Sessions: auth.NewSessionService([]byte(cfg.Auth.JWTSecret)),
		BotAuth:  auth.NewBotTokenService([]byte(cfg.Auth.JWTSecret)),
		Limiter:  limiter,
		Recorder: recorder,

		OAuthProviders: providers,

		AuditPageSize: cfg.Audit.PageSize,
		Logger:        logger,
	})

	cleanup := func() {
		stopLimiter()
		if mirror != nil {
			if err := mirror.Close(); err != nil {
				logger.Warn("failed to close audit mirror", "error", err)
			}
		}
	}
	return svc, cleanup, nil
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if direction != "up" && direction != "down" {
		return fmt.Errorf("invalid migration direction: %s (must be up or down)", direction)
	}

	database, err := db.Connect(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}
	slog.Info("migrations applied", "direction", direction)
	return nil
}
