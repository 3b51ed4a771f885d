package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/adapter/publisher"
	"github.com/eventforge/eventforge/internal/adapter/repository/postgres"
	redisrepo "github.com/eventforge/eventforge/internal/adapter/repository/redis"
	"github.com/eventforge/eventforge/internal/database"
	"github.com/eventforge/eventforge/internal/pkg/config"
	"github.com/eventforge/eventforge/internal/pkg/logger"
	"github.com/eventforge/eventforge/internal/usecase"
)

const idleInterval = 1 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting rebuild worker", "partition", cfg.Partition)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("connected to postgres")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	m := metrics.NewRebuildMetrics()

	metricsServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Info("starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()

	canonicalRepo := postgres.NewCanonicalRepository(db, log)
	viewRepo := postgres.NewViewRepository(db, log)

	staticPub, err := publisher.NewStaticPublisher(cfg.StaticArtifactDir, log)
	if err != nil {
		log.Error("failed to initialize static publisher", "error", err)
		os.Exit(1)
	}
	invalidator := publisher.NewCacheInvalidator(cfg.CacheInvalidateURL, nil, log)

	queue, err := redisrepo.NewSignalQueue(redisClient, log, cfg.ConsumerGroup, cfg.CoalesceWindow)
	if err != nil {
		log.Error("failed to initialize signal queue", "error", err)
		os.Exit(1)
	}

	worker := usecase.NewRebuildUseCase(
		canonicalRepo, queue, viewRepo, staticPub, invalidator, log, m,
		cfg.RebuildTimeout, cfg.MaxReceives, cfg.LeaseTimeout,
	)

	consumerName, err := os.Hostname()
	if err != nil {
		log.Warn("could not get hostname for consumer name, using default", "error", err)
		consumerName = "rebuilder-default"
	}

	worker.Start(ctx, consumerName, idleInterval)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics server shutdown failed", "error", err)
	}
	log.Info("rebuild worker shut down gracefully")
}
