package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rfinnegan/investment-tracker/internal/alerts"
	"github.com/rfinnegan/investment-tracker/internal/api"
	"github.com/rfinnegan/investment-tracker/internal/cache"
	"github.com/rfinnegan/investment-tracker/internal/config"
	"github.com/rfinnegan/investment-tracker/internal/database"
	"github.com/rfinnegan/investment-tracker/internal/kafka"
	"github.com/rfinnegan/investment-tracker/internal/logger"
	"github.com/rfinnegan/investment-tracker/internal/marketdata"
	"github.com/rfinnegan/investment-tracker/internal/notify"
	"github.com/rfinnegan/investment-tracker/internal/scheduler"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString(), log); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}
	log.Info().Msg("connected to postgres")

	// Connect to Redis price cache
	priceCache, err := cache.New(cfg.Redis, cfg.Scheduler.PriceTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer priceCache.Close()
	log.Info().Str("addr", cfg.Redis.Address()).Msg("connected to redis")

	// Kafka dispatcher for triggered alerts
	dispatcher := notify.NewKafkaDispatcher(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
	defer dispatcher.Close()
	log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AlertsTopic).
		Msg("kafka dispatcher initialized")

	engine := alerts.NewEngine(db, dispatcher, log)
	fetcher := marketdata.NewClient(cfg.MarketData, log)

	// Every replica gets a distinct holder id so the lease table can tell
	// them apart.
	holderID := workerID()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresh := scheduler.NewRefreshWorker(db, db, fetcher, priceCache, engine,
		holderID, cfg.Scheduler.RefreshLeaseTTL, log)
	go refresh.Run(ctx)

	snapshots := scheduler.NewSnapshotWorker(db, db, priceCache,
		holderID, cfg.Scheduler.SnapshotLeaseTTL, log)
	go snapshots.Run(ctx)

	// Create and start Kafka consumer for trade events
	consumer := kafka.NewTradesConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.TradesTopic,
		cfg.Kafka.ConsumerGroup,
		db,
		log,
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("trades consumer error")
		}
	}()

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, priceCache)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Str("worker", holderID).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// Cancel context to stop workers and the consumer
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("error closing trades consumer")
	}

	log.Info().Msg("server stopped")
}

// workerID identifies this replica in the scheduler lease table.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func runMigrations(databaseURL string, log zerolog.Logger) error {
	m, err := migrate.New("file://./db/migrations", databaseURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info().Msg("no migrations to apply; database is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
