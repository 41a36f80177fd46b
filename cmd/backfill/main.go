package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iskolarlink/iskolarlink-backend/internal/jobs"
	"github.com/iskolarlink/iskolarlink-backend/internal/scholars"
	"github.com/iskolarlink/iskolarlink-backend/internal/trackers"
	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
	"github.com/iskolarlink/iskolarlink-backend/pkg/db"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/metrics"
	"github.com/iskolarlink/iskolarlink-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "backfill"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	programsFlag := flag.String("programs", "", "comma separated tracker programs (default: all)")
	flag.Parse()

	programs, err := parsePrograms(*programsFlag)
	if err != nil {
		logg.Error(context.Background(), "invalid -programs value", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "backfill"

	logg = logger.New(logger.Options{
		ServiceName: "backfill",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	reconciler, err := trackers.NewReconciler(trackers.ReconcilerParams{
		Repo:      trackers.NewRepository(dbClient.DB()),
		Directory: scholars.NewRepository(dbClient.DB()),
		Logger:    logg,
		Metrics:   metrics.NewTrackerMetrics(registry),
		BatchSize: cfg.Trackers.ReconcileBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tracker reconciler", err)
		os.Exit(1)
	}

	backfill, err := jobs.NewTrackerBackfillJob(jobs.TrackerBackfillParams{
		Logger:     logg,
		Reconciler: reconciler,
		Programs:   programs,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create backfill job", err)
		os.Exit(1)
	}

	lock, err := jobs.NewRedisLock(redisClient, redisClient.LockKey(jobs.TrackerBackfillJobName), cfg.Backfill.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create job lock", err)
		os.Exit(1)
	}

	runner, err := jobs.NewRunner(jobs.RunnerParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(backfill),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create job runner", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting tracker backfill")

	if err := runner.RunOnce(ctx); err != nil {
		if errors.Is(err, jobs.ErrLockHeld) {
			logg.Warn(ctx, "tracker backfill already running elsewhere; nothing to do")
			return
		}
		logg.Error(ctx, "tracker backfill failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "tracker backfill complete")
}

func parsePrograms(raw string) ([]enums.TrackerProgram, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var programs []enums.TrackerProgram
	for _, part := range strings.Split(raw, ",") {
		program, err := enums.ParseTrackerProgram(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}
	return programs, nil
}
