package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/catalog"
	"github.com/fletera/fiscal-engine/internal/cfdi"
	"github.com/fletera/fiscal-engine/internal/config"
	"github.com/fletera/fiscal-engine/internal/database"
	"github.com/fletera/fiscal-engine/internal/events"
	"github.com/fletera/fiscal-engine/internal/handlers"
	"github.com/fletera/fiscal-engine/internal/metrics"
	"github.com/fletera/fiscal-engine/internal/stamping"
	"github.com/fletera/fiscal-engine/internal/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger, err := newLogger(cfg.Logging, cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Fiscal Engine Service",
		zap.String("version", "1.0.0"),
		zap.String("environment", cfg.Environment))

	// Database and migrations
	db, err := database.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.Database, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Repositories
	postalRepo := database.NewPostalCodeRepository(db, logger)
	identityRepo := database.NewIdentityRepository(db, logger)

	// Optional shared cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()
	}

	collector := metrics.NewCollector()

	// Pipeline components
	externalClient := catalog.NewExternalClient(cfg.Catalog, logger)
	resolver := catalog.NewResolver(postalRepo, redisClient, externalClient, cfg.Catalog, collector, logger)
	engine := validation.NewEngine(identityRepo, logger)
	generator := cfdi.NewGenerator(logger)

	providerClient := stamping.NewHTTPClient(cfg.Stamping, logger)

	publisher, err := events.NewPublisher(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer publisher.Close()

	var eventSink stamping.EventPublisher
	if publisher != nil {
		eventSink = publisher
	}
	orchestrator := stamping.NewOrchestrator(providerClient, eventSink, logger)

	// HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	handler := handlers.NewFiscalHandler(resolver, engine, generator, orchestrator, identityRepo, collector, logger)
	handler.RegisterRoutes(router)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

func newLogger(cfg config.LoggingConfig, debug bool) (*zap.Logger, error) {
	if debug || cfg.Format == "console" {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	if err := zapCfg.Level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	return zapCfg.Build()
}
