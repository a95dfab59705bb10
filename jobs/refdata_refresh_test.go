package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/sourcing-hub/marketplace/internal/jobs"
	"github.com/sourcing-hub/marketplace/internal/refdata"
)

type fakeRefresher struct {
	opts  refdata.Options
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(ctx context.Context) (refdata.Options, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return refdata.Options{}, errors.New("missing deadline")
	}
	return f.opts, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestJob(t *testing.T, r Refresher) (*RefdataRefreshJob, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRefdataRefreshJob(r, discardLogger(), jobmetrics.NewMetrics(reg)), reg
}

func TestNewRefdataRefreshTask(t *testing.T) {
	task, err := NewRefdataRefreshTask("")
	require.NoError(t, err)
	assert.Equal(t, TaskRefdataRefresh, task.Type())

	var payload RefdataRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "manual", payload.Reason)
	assert.False(t, payload.RequestedAt.IsZero())
}

func TestRefdataRefreshJobRecordsOptionCounts(t *testing.T) {
	refresher := &fakeRefresher{opts: refdata.Options{
		Industries: []string{"Food", "Drinks"},
		Locations:  []string{"Italy"},
	}}
	job, reg := newTestJob(t, refresher)
	task, err := NewRefdataRefreshTask("cron")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, refresher.calls)

	metrics, err := reg.Gather()
	require.NoError(t, err)
	gauges := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() != "marketplace_refdata_options" {
			continue
		}
		for _, m := range mf.GetMetric() {
			gauges[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 2.0, gauges["industry"])
	assert.Equal(t, 1.0, gauges["location"])
	assert.Equal(t, 0.0, gauges["category"])
}

func TestRefdataRefreshJobFailureCounted(t *testing.T) {
	job, reg := newTestJob(t, &fakeRefresher{err: errors.New("upstream down")})
	task, err := NewRefdataRefreshTask("api")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "marketplace_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefdataRefreshJobSkipsRetryOnBadPayload(t *testing.T) {
	refresher := &fakeRefresher{}
	job, _ := newTestJob(t, refresher)

	err := job.Handle(context.Background(), asynq.NewTask(TaskRefdataRefresh, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Zero(t, refresher.calls)
}

func TestRefdataRefreshJobNotConfigured(t *testing.T) {
	var job *RefdataRefreshJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskRefdataRefresh, nil)))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

type fakeEnqueuer struct {
	err     error
	reasons []string
}

func (f *fakeEnqueuer) EnqueueRefdataRefresh(_ context.Context, reason string) (*asynq.TaskInfo, error) {
	f.reasons = append(f.reasons, reason)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "task-1"}, nil
}

func serveJobs(h *Handler, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHandlerHealth(t *testing.T) {
	rr := serveJobs(NewHandler(nil, nil, discardLogger()), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0}`, rr.Body.String())

	inspector := fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 3, Retry: 1}}
	rr = serveJobs(NewHandler(inspector, nil, discardLogger()), http.MethodGet, "/health")
	assert.JSONEq(t, `{"queue":"default","pending":3,"active":0,"scheduled":0,"retry":1}`, rr.Body.String())

	rr = serveJobs(NewHandler(fakeInspector{err: errors.New("redis down")}, nil, discardLogger()), http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandlerTriggerRefresh(t *testing.T) {
	enq := &fakeEnqueuer{}
	rr := serveJobs(NewHandler(nil, enq, discardLogger()), http.MethodPost, "/refdata-refresh")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"status":"queued","task_id":"task-1"}`, rr.Body.String())
	assert.Equal(t, []string{"api"}, enq.reasons)

	enq = &fakeEnqueuer{err: asynq.ErrDuplicateTask}
	rr = serveJobs(NewHandler(nil, enq, discardLogger()), http.MethodPost, "/refdata-refresh")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "already_queued")

	rr = serveJobs(NewHandler(nil, nil, discardLogger()), http.MethodPost, "/refdata-refresh")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestClientEnqueuesRefreshOnDefaultQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	info, err := client.EnqueueRefdataRefresh(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, QueueDefault, info.Queue)
	assert.Equal(t, TaskRefdataRefresh, info.Type)

	_, err = client.EnqueueRefdataRefresh(context.Background(), "test")
	assert.ErrorIs(t, err, asynq.ErrDuplicateTask)

	task := asynq.NewTask("refdata:noop", nil)
	info, err = client.Enqueue(context.Background(), task, asynq.Queue("low"))
	require.NoError(t, err)
	assert.Equal(t, "low", info.Queue)
}
