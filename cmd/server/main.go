package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"splitpay/internal/app"
	"splitpay/internal/clock"
	"splitpay/internal/config"
	"splitpay/internal/ecr"
	"splitpay/internal/handler"
	"splitpay/internal/middleware"
	internalRedis "splitpay/internal/redis"
	"splitpay/internal/repository"
	"splitpay/internal/repository/memory"
	"splitpay/internal/repository/postgres"
	"splitpay/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logFile := app.ConfigureLogging(cfg.Log)
	defer logFile.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	var db *sql.DB
	if cfg.Database.Enabled {
		db, err = app.NewArchiveDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Connected to PostgreSQL")
	}

	var redisClient *redis.Client
	if cfg.Split.ProgressStore == "redis" {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s (progress store: %s)", cfg.Server.Port, cfg.Split.ProgressStore)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// A split payment in flight must reach an outcome before the process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	if nrApp != nil {
		nrApp.Shutdown(10 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config) *http.Server {
	clk := clock.NewSystem()

	// Initialize stores.
	var (
		progressStore    repository.ProgressStore
		sessionLocker    repository.SessionLocker
		idempotencyStore middleware.IdempotencyStore
	)
	if redisClient != nil {
		progressStore = internalRedis.NewProgressStore(redisClient, clk, cfg.Split.Retention)
		sessionLocker = internalRedis.NewLockStore(redisClient)
		idempotencyStore = internalRedis.NewIdempotencyStore(redisClient)
	} else {
		progressStore = memory.NewProgressStore(clk, memory.WithRetention(cfg.Split.Retention))
		sessionLocker = memory.NewSessionLocker(clk)
		idempotencyStore = memory.NewIdempotencyStore(clk)
	}

	// Initialize services.
	terminal := ecr.NewClient(cfg.ECR)
	opts := []service.SplitPaymentOption{
		service.WithSessionLocker(sessionLocker),
		service.WithNotifications(service.NewNotificationService()),
		service.WithSessionLockTTL(cfg.Split.SessionLockTTL),
		service.WithRetryPolicy(service.RetryPolicy{
			Interval:    cfg.Split.PollInterval,
			MaxAttempts: cfg.Split.PollMaxAttempts,
		}),
		service.WithTerminalDefaults(service.SessionContext{
			TerminalID:   cfg.ECR.TerminalID,
			StationID:    cfg.ECR.StationID,
			CashierID:    cfg.ECR.CashierID,
			PrintReceipt: cfg.ECR.PrintReceipt,
		}),
	}
	if db != nil {
		opts = append(opts, service.WithArchive(postgres.NewSplitPaymentRepository(db)))
	}
	splitService := service.NewSplitPaymentService(
		progressStore,
		service.NewPartInitiator(terminal),
		service.NewStatusPoller(terminal, clk),
		clk,
		opts...,
	)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SplitPaymentHandler: handler.NewSplitPaymentHandler(splitService),
		IdempotencyStore:    idempotencyStore,
		CORSOrigins:         cfg.Server.CORSOrigins,
		NewRelicApp:         nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
