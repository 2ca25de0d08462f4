package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/sunmax/ledger/internal/jobs"
)

func TestNewDocumentRegenerateTask(t *testing.T) {
	task, err := NewDocumentRegenerateTask("invoice", " INV07 ")
	require.NoError(t, err)
	assert.Equal(t, TaskDocumentRegenerate, task.Type())

	var payload DocumentRegeneratePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, DocumentRegeneratePayload{Kind: "invoice", Number: "INV07"}, payload)

	_, err = NewDocumentRegenerateTask("invoice", "")
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestEnqueueDocumentRegenerateCollapsesDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueueDocumentRegenerate(context.Background(), "invoice", "INV07")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, QueueDefault, info.Queue)

	again, err := client.EnqueueDocumentRegenerate(context.Background(), "invoice", "INV07")
	require.NoError(t, err)
	assert.Nil(t, again)

	other, err := client.EnqueueDocumentRegenerate(context.Background(), "quotation", "INV07")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Reconcile(context.Context) error {
	f.calls++
	return f.err
}

func TestStatsReconcileJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	stats := &fakeReconciler{}
	job := NewStatsReconcileJob(stats, nil, metrics)

	task, err := NewStatsReconcileTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, stats.calls)

	stats.err = errors.New("redis down")
	require.ErrorIs(t, job.Handle(context.Background(), task), stats.err)

	bad := asynq.NewTask(TaskStatsReconcile, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	expected := `
# HELP ledger_jobs_failures_total Total failures observed for background jobs.
# TYPE ledger_jobs_failures_total counter
ledger_jobs_failures_total{job="stats:reconcile",kind="aggregates"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_jobs_failures_total"))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","paused":false,"pending":0,"active":0,"scheduled":0,"retry":0,"failed_today":0}`, rr.Body.String())
}
