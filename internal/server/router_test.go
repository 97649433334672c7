package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loykin/jobsched/internal/clock"
	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/execution"
	"github.com/loykin/jobsched/internal/schedule"
	"github.com/loykin/jobsched/internal/scheduler"
	"github.com/loykin/jobsched/internal/serviceprovider"
)

func newTestScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.WithClock(clock.NewManual(time.Unix(0, 0))))
}

func TestRouter_ListJobs(t *testing.T) {
	s := newTestScheduler()
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil },
		definition.WithSchedule(schedule.New(schedule.WithCron("*/5 * * * * *"))),
	))

	r := NewRouter(s, "")
	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []jobView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	require.Equal(t, "job-1", jobs[0].ID)
	require.Equal(t, "*/5 * * * * *", jobs[0].Cron)
}

func TestRouter_ListExecutions_UnknownJob(t *testing.T) {
	s := newTestScheduler()
	r := NewRouter(s, "")
	req := httptest.NewRequest(http.MethodGet, "/jobs/missing/executions", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_ForceStart(t *testing.T) {
	s := newTestScheduler()
	s.Add(definition.NewAction("job-1", "Job One",
		func(_ *execution.Execution, _ serviceprovider.Provider, _ context.Context) error { return nil },
	))

	r := NewRouter(s, "/admin")
	req := httptest.NewRequest(http.MethodPost, "/admin/jobs/job-1/force-start", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
