package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sunmax/ledger/internal/app"
	"github.com/sunmax/ledger/internal/document"
	jobmetrics "github.com/sunmax/ledger/internal/jobs"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/platform/cache"
	"github.com/sunmax/ledger/internal/platform/db"
	"github.com/sunmax/ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	// The worker renders documents itself, so it never queues regenerate tasks.
	services := app.NewServices(app.ServiceDeps{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	})

	documentJob := document.NewJob(document.JobConfig{
		Store:   services.Documents,
		Loaders: services.DocumentLoaders(),
		Logger:  logger,
		Metrics: jobMetrics,
	})
	reconcileJob := jobs.NewStatsReconcileJob(services.Stats, logger, jobMetrics)

	reconcileTask, err := jobs.NewStatsReconcileTask("scheduled")
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Queue(),
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDocumentRegenerate, Handler: documentJob.Handle},
			{Type: jobs.TaskStatsReconcile, Handler: reconcileJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/15 * * * *", Task: reconcileTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
