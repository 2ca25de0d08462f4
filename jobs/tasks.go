package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDocumentRegenerate re-renders one stored invoice or quotation PDF.
	TaskDocumentRegenerate = "document:regenerate"
	// TaskStatsReconcile drops and rebuilds the cached dashboard aggregates.
	TaskStatsReconcile = "stats:reconcile"
)

// ErrInvalidPayload is returned when a task cannot be built from its inputs.
var ErrInvalidPayload = errors.New("jobs: invalid payload")

// DocumentRegeneratePayload names the document to render again.
type DocumentRegeneratePayload struct {
	Kind   string `json:"kind"`
	Number string `json:"number"`
}

// NewDocumentRegenerateTask constructs a regeneration task. Tasks for the same
// document collapse while one is still queued.
func NewDocumentRegenerateTask(kind, number string) (*asynq.Task, error) {
	kind = strings.TrimSpace(kind)
	number = strings.TrimSpace(number)
	if kind == "" || number == "" {
		return nil, ErrInvalidPayload
	}
	data, err := json.Marshal(DocumentRegeneratePayload{Kind: kind, Number: number})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentRegenerate, data, asynq.Queue(QueueDefault), asynq.TaskID(TaskDocumentRegenerate+":"+kind+":"+number)), nil
}

// StatsReconcilePayload scopes a reconcile run.
type StatsReconcilePayload struct {
	Reason string `json:"reason"`
}

// NewStatsReconcileTask constructs the periodic reconcile task.
func NewStatsReconcileTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "scheduled"
	}
	data, err := json.Marshal(StatsReconcilePayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsReconcile, data, asynq.Queue(QueueDefault)), nil
}
