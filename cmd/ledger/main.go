package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sunmax/ledger/cmd/ledger/cli"
	"github.com/sunmax/ledger/internal/app"
	"github.com/sunmax/ledger/internal/customers"
	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/platform/cache"
	"github.com/sunmax/ledger/internal/platform/db"
	"github.com/sunmax/ledger/internal/quotations"
	"github.com/sunmax/ledger/internal/stats"
	"github.com/sunmax/ledger/jobs"
)

const usage = `usage:
  ledger                          run the HTTP server
  ledger migrate                  apply the database schema
  ledger jobs trigger <job> [args] enqueue document:regenerate <kind> <number> or stats:reconcile [reason]
  ledger jobs inspect             print default queue counters`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	args := os.Args[1:]
	switch {
	case len(args) == 0:
		err = serve(ctx, cfg, logger)
	case args[0] == "migrate":
		err = migrate(ctx, cfg, logger)
	case args[0] == "jobs" && len(args) >= 2:
		err = runJobs(ctx, cfg, args[1], args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("ledger", slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, command string, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.Queue())
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	switch command {
	case "trigger":
		if len(args) == 0 {
			return errors.New(usage)
		}
		info, err := jobsCLI.Trigger(ctx, args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Println(stats)
	default:
		return errors.New(usage)
	}
	return nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, 0)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(cfg.Queue())
	if err != nil {
		return fmt.Errorf("jobs client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(cfg.Queue())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services := app.NewServices(app.ServiceDeps{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Redis:       redisClient,
		Metrics:     metrics,
		Regenerator: jobClient,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		InvoiceHandler:   invoicing.NewHandler(logger, services.Invoices),
		QuotationHandler: quotations.NewHandler(logger, services.Quotations),
		CustomerHandler:  customers.NewHandler(logger, services.Customers),
		StatsHandler:     stats.NewHandler(logger, services.Stats),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
