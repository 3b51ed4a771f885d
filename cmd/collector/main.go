package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/eventforge/eventforge/internal/adapter/metrics"
	"github.com/eventforge/eventforge/internal/adapter/repository/journal"
	"github.com/eventforge/eventforge/internal/adapter/repository/postgres"
	redisrepo "github.com/eventforge/eventforge/internal/adapter/repository/redis"
	"github.com/eventforge/eventforge/internal/database"
	"github.com/eventforge/eventforge/internal/feed"
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
	log.Info("starting collector", "partition", cfg.Partition)

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

	m := metrics.NewPipelineMetrics()

	canonicalRepo := postgres.NewCanonicalRepository(db, log)
	overrideRepo := postgres.NewOverrideRepository(db, log)
	groupRepo := postgres.NewGroupRepository(db, log)

	if cfg.GroupSeedPath != "" {
		groups, err := config.LoadGroupSeed(cfg.GroupSeedPath)
		if err != nil {
			log.Error("failed to load group seed", "error", err)
			os.Exit(1)
		}
		if err := usecase.SeedGroups(ctx, groupRepo, groups, log); err != nil {
			log.Error("failed to seed groups", "error", err)
			os.Exit(1)
		}
	}

	queue, err := redisrepo.NewSignalQueue(redisClient, log, cfg.ConsumerGroup, cfg.CoalesceWindow)
	if err != nil {
		log.Error("failed to initialize signal queue", "error", err)
		os.Exit(1)
	}

	journalRepo, err := journal.NewJournalRepository(cfg.JournalDir, cfg.JournalSegment, cfg.JournalMaxSize, log)
	if err != nil {
		log.Error("failed to initialize dispatch journal", "error", err)
		os.Exit(1)
	}
	defer journalRepo.Close()

	fetcher := feed.NewFetcher(cfg.FeedCacheDir, cfg.FeedFetchTimeout, cfg.FeedRatePerSec, log)
	loader := feed.NewClient(fetcher, log)

	refresh := usecase.NewRefreshFeedsUseCase(
		groupRepo, overrideRepo, canonicalRepo, loader, log, m,
		cfg.Partition, cfg.FeedFetchTimeout, cfg.Retention(), cfg.Horizon(), cfg.Location(),
	)
	dispatcher := usecase.NewDispatchChangesUseCase(
		canonicalRepo, queue, journalRepo, log, m, cfg.Partition, cfg.CoalesceWindow,
	)

	// Replay anything left in the journal from a previous run before the
	// first dispatch tick.
	if err := dispatcher.ReplayJournal(ctx); err != nil {
		log.Warn("startup journal replay failed, will retry on schedule", "error", err)
	}

	go dispatcher.Start(ctx, cfg.DispatchInterval, cfg.ReplayInterval)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RefreshCron, func() {
		if err := refresh.Run(ctx); err != nil {
			log.Error("collection cycle failed", "error", err)
		}
	}); err != nil {
		log.Error("invalid refresh cron expression", "cron", cfg.RefreshCron, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	log.Info("collection schedule registered", "cron", cfg.RefreshCron)

	// One cycle at startup so a fresh deployment publishes without waiting
	// for the first cron fire.
	if err := refresh.Run(ctx); err != nil {
		log.Error("initial collection cycle failed", "error", err)
	}

	<-ctx.Done()
	log.Info("shutting down collector...")
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()
	log.Info("collector shut down gracefully")
}
