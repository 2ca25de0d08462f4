package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sunmax/ledger/internal/jobs"
	"github.com/sunmax/ledger/jobs"
)

// JobConfig wires dependencies required by the worker job.
type JobConfig struct {
	Store   *Store
	Loaders map[Kind]Loader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Job re-renders stored documents on request from the queue.
type Job struct {
	store   *Store
	loaders map[Kind]Loader
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewJob constructs a Job handler.
func NewJob(cfg JobConfig) *Job {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{store: cfg.Store, loaders: cfg.Loaders, logger: logger, metrics: cfg.Metrics}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.store == nil {
		return fmt.Errorf("document job not configured")
	}
	var payload jobs.DocumentRegeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	kind := Kind(payload.Kind)
	load, ok := j.loaders[kind]
	if !ok || payload.Number == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(jobs.TaskDocumentRegenerate, payload.Kind)
	file, err := j.store.Regenerate(ctx, kind, payload.Number, load)
	switch {
	case errors.Is(err, ErrNotFound):
		_ = j.store.Remove(kind, payload.Number)
		j.logger.Info("document source gone", slog.String("kind", payload.Kind), slog.String("number", payload.Number))
		tracker.Skip()
		return asynq.SkipRetry
	case errors.Is(err, ErrInvalidNumber):
		_ = tracker.End(err)
		return asynq.SkipRetry
	case err != nil:
		return tracker.End(err)
	}
	j.logger.Info("document regenerated",
		slog.String("kind", payload.Kind),
		slog.String("number", payload.Number),
		slog.String("file", file.Path),
		slog.Bool("fallback", file.Fallback))
	return tracker.End(nil)
}
