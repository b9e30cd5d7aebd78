package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"

	"affiliateplatform/internal/commission"
	commissionapi "affiliateplatform/internal/commission/api"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/events"
	"affiliateplatform/internal/common/middleware"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/common/nats"
	"affiliateplatform/internal/ledger"
	ledgerapi "affiliateplatform/internal/ledger/api"
	"affiliateplatform/internal/rateconfig"
	rateconfigapi "affiliateplatform/internal/rateconfig/api"
	"affiliateplatform/internal/withdrawal"
	withdrawalapi "affiliateplatform/internal/withdrawal/api"
)

// Config holds service configuration
type Config struct {
	Port        int    `envconfig:"AFFILIATE_PORT" default:"8086"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	Currency    string `envconfig:"PLATFORM_CURRENCY" default:"USD"`

	Database   database.Config
	Migrations database.MigrateConfig
	NATS       nats.Config
}

func main() {
	// Load configuration
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	// Create context that listens for shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Run migrations
	if cfg.Migrations.Enabled {
		if err := database.MigrateUp(cfg.Database.URL, cfg.Migrations.Path, logger); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	// Connect to database
	db, err := database.New(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to NATS
	nc, err := nats.New(ctx, cfg.NATS, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	if _, err := nc.EnsureStream(ctx, nats.StreamConfig{
		Name:     "EVENTS",
		Subjects: []string{"events.>"},
	}); err != nil {
		logger.Error("failed to ensure event stream", "error", err)
		os.Exit(1)
	}

	publisher := nats.NewPublisher(nc, logger)
	currency := money.Currency(cfg.Currency)

	// Create stores
	balanceStore := ledger.NewPostgresStore(db, currency)
	commissionStore := commission.NewPostgresStore(db, balanceStore)
	withdrawalStore := withdrawal.NewPostgresStore(db, balanceStore)
	configStore := rateconfig.NewPostgresStore(db)

	// Create services
	balanceService := ledger.NewService(balanceStore, logger)
	configService := rateconfig.NewService(configStore, logger)
	commissionService := commission.NewService(commissionStore, configService, publisher, logger)
	withdrawalService := withdrawal.NewService(withdrawalStore, configService, publisher, logger)

	// Consume order completions from the event bus
	orderConsumer, err := nc.EnsureConsumer(ctx, "EVENTS", "affiliate-order-completed",
		fmt.Sprintf("events.%s", events.EventOrderCompleted))
	if err != nil {
		logger.Error("failed to ensure order consumer", "error", err)
		os.Exit(1)
	}
	orderSubscriber := nats.NewSubscriber(orderConsumer, logger)
	go func() {
		if err := orderSubscriber.Start(ctx, commissionService.HandleOrderCompleted); err != nil && ctx.Err() == nil {
			logger.Error("order subscriber stopped", "error", err)
			cancel()
		}
	}()

	// Create handlers
	balanceHandler := ledgerapi.NewHandler(balanceService)
	commissionHandler := commissionapi.NewHandler(commissionService, currency)
	withdrawalHandler := withdrawalapi.NewHandler(withdrawalService, currency)
	configHandler := rateconfigapi.NewHandler(configService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Identity)
	r.Use(chimw.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.HealthCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		if err := nc.HealthCheck(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready check
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/balances", balanceHandler.Routes())
		r.Mount("/commissions", commissionHandler.Routes())
		r.Mount("/withdrawals", withdrawalHandler.Routes())
		r.Mount("/config", configHandler.Routes())
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting affiliate service",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"currency", cfg.Currency,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
