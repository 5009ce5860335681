package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Queue: QueueDefault}, nil
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestTriggerDelaySweepEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := newTestRouter(NewHandler(nil, enq, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/delay-sweep", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "t-1")
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TaskTypeDelaySweep, enq.tasks[0].Type())
}

func TestTriggerDelaySweepWithoutEnqueuer(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/delay-sweep", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthWithoutInspector(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "default")
}
