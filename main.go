package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/FACorreiaa/go-account-service/app/db"
	appLogger "github.com/FACorreiaa/go-account-service/app/logger"
	"github.com/FACorreiaa/go-account-service/app/observability/metrics"
	"github.com/FACorreiaa/go-account-service/config"
	"github.com/FACorreiaa/go-account-service/internal/api/auth"
	"github.com/FACorreiaa/go-account-service/internal/api/mail"
	"github.com/FACorreiaa/go-account-service/internal/api/sync"
	"github.com/FACorreiaa/go-account-service/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails.
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Migrations run before the main pool is opened.
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// The upstream profile database is optional; without it the sync
	// endpoints are not mounted.
	var upstreamPool *pgxpool.Pool
	if cfg.Repositories.UpstreamURL != "" {
		upstreamPool, err = database.InitUpstream(cfg.Repositories.UpstreamURL, logger)
		if err != nil {
			logger.Error("Failed to initialize upstream database pool", slog.Any("error", err))
			os.Exit(1)
		}
		defer upstreamPool.Close()
	}

	// --- Metrics ---
	if err := metrics.SetupPrometheusExporter(); err != nil {
		logger.Error("Failed to set up metrics exporter", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	// --- Mail ---
	var sender mail.Sender
	if cfg.SMTP.Host != "" {
		smtpSender, err := mail.NewSMTPSender(cfg.SMTP)
		if err != nil {
			logger.Error("Failed to configure SMTP sender", slog.Any("error", err))
			os.Exit(1)
		}
		sender = smtpSender
	} else {
		logger.Warn("SMTP host not configured, outbound mail disabled")
		sender = &mail.DisabledSender{Reason: "smtp is not configured"}
	}
	notifier := mail.NewNotifier(sender, logger)

	// --- Dependency Injection ---
	tokens, err := auth.NewTokenIssuer(cfg.JWT)
	if err != nil {
		logger.Error("Failed to configure token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := auth.NewPostgresUserRepo(pool, logger)
	authService := auth.NewServiceImpl(userRepo, tokens, notifier, cfg.Admin.Emails, logger).
		WithDefaultLinks(cfg.Links.ResetBaseURL, cfg.Links.VerifyBaseURL, cfg.Links.QueryName)
	authHandler := auth.NewAuthHandler(authService, logger)

	var syncHandler *sync.Handler
	if upstreamPool != nil {
		upstreamRepo := sync.NewPostgresUpstreamRepo(upstreamPool, logger)
		syncService := sync.NewService(userRepo, upstreamRepo, logger)
		syncHandler = sync.NewHandler(syncService, logger)
	}

	// --- Router Setup ---
	routerConfig := &router.Config{
		AuthHandler:            authHandler,
		SyncHandler:            syncHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, tokens, userRepo),
	}
	mainRouter := router.SetupRouter(routerConfig)

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	// --- HTTP Server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
