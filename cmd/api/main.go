package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eventforge/eventforge/internal/adapter/api"
	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/adapter/publisher"
	"github.com/eventforge/eventforge/internal/adapter/repository/postgres"
	redisrepo "github.com/eventforge/eventforge/internal/adapter/repository/redis"
	"github.com/eventforge/eventforge/internal/database"
	"github.com/eventforge/eventforge/internal/pkg/config"
	"github.com/eventforge/eventforge/internal/pkg/logger"
	"github.com/eventforge/eventforge/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	m := metrics.NewPipelineMetrics()

	canonicalRepo := postgres.NewCanonicalRepository(db, log)
	overrideRepo := postgres.NewOverrideRepository(db, log)
	groupRepo := postgres.NewGroupRepository(db, log)
	viewRepo := postgres.NewViewRepository(db, log)
	apiKeyRepo := postgres.NewAPIKeyRepository(db, log, cfg.APIKeyCacheTTL, m)

	staticPub, err := publisher.NewStaticPublisher(cfg.StaticArtifactDir, log)
	if err != nil {
		log.Error("failed to initialize static publisher", "error", err)
		os.Exit(1)
	}

	submitUseCase := usecase.NewSubmitUseCase(
		canonicalRepo, overrideRepo, groupRepo, log,
		cfg.Partition, cfg.Retention(), cfg.Horizon(), cfg.Location(),
	)

	publicRouter := api.NewRouter(log, apiKeyRepo, submitUseCase, viewRepo, staticPub, cfg.Partition)
	publicServer := &http.Server{
		Addr:         cfg.APIServerAddr,
		Handler:      publicRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	adminRepo := redisrepo.NewAdminRepository(redisClient, log)
	adminUseCase := usecase.NewAdminQueueUseCase(adminRepo)
	adminServer := &http.Server{
		Addr:    cfg.AdminServerAddr,
		Handler: api.NewAdminRouter(adminUseCase, groupRepo, log),
	}

	go func() {
		log.Info("starting api server", "addr", publicServer.Addr)
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server failed", "error", err)
			stop()
		}
	}()
	go func() {
		log.Info("starting admin server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down servers...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api server shutdown failed", "error", err)
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.Error("admin server shutdown failed", "error", err)
	}

	log.Info("servers shut down gracefully")
}
