package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sunmax/ledger/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatsReconciler rebuilds cached aggregates from committed state.
type StatsReconciler interface {
	Reconcile(ctx context.Context) error
}

// StatsReconcileJob periodically discards cached dashboard aggregates so
// drift from missed invalidations cannot outlive one run.
type StatsReconcileJob struct {
	Stats   StatsReconciler
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatsReconcileJob wires dependencies for the reconcile handler.
func NewStatsReconcileJob(stats StatsReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsReconcileJob {
	return &StatsReconcileJob{Stats: stats, Logger: logger, Metrics: metrics}
}

// Handle processes TaskStatsReconcile tasks.
func (j *StatsReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stats == nil {
		return errors.New("stats reconcile: handler not configured")
	}
	var payload StatsReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStatsReconcile, "aggregates")
	start := time.Now()
	logger := j.logger().With(slog.String("reason", payload.Reason))
	if err := j.Stats.Reconcile(ctx); err != nil {
		logger.Error("reconcile stats", slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("stats reconciled", slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func (j *StatsReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatsReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStatsReconcile))
}

func (j *StatsReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
