package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/scheduler"
)

type fakeSchedules struct {
	jobs       map[string]scheduler.JobStatus
	triggerErr error
	triggered  []string
}

func newFakeSchedules(names ...string) *fakeSchedules {
	f := &fakeSchedules{jobs: map[string]scheduler.JobStatus{}}
	for _, name := range names {
		f.jobs[name] = scheduler.JobStatus{
			ID:     uuid.New(),
			Name:   name,
			Cron:   "0 3 * * *",
			Kind:   "scan",
			Target: name + ".example.com",
		}
	}
	return f
}

func (f *fakeSchedules) Jobs() []scheduler.JobStatus {
	out := make([]scheduler.JobStatus, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (f *fakeSchedules) Job(name string) (scheduler.JobStatus, bool) {
	j, ok := f.jobs[name]
	return j, ok
}

func (f *fakeSchedules) Trigger(name string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	j, ok := f.jobs[name]
	if !ok {
		return errors.ErrNotFound("schedule", name)
	}
	j.Running = true
	f.jobs[name] = j
	f.triggered = append(f.triggered, name)
	return nil
}

func scheduleRouter(h *ScheduleHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/schedules", h.ListSchedules).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{name}", h.GetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/schedules/{name}/run", h.RunSchedule).Methods(http.MethodPost)
	return r
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, http.NoBody))
	return rec
}

func TestListSchedules(t *testing.T) {
	tests := []struct {
		name      string
		schedules Schedules
		expected  []string
	}{
		{"no scheduler", nil, []string{}},
		{"empty scheduler", newFakeSchedules(), []string{}},
		{"sorted jobs", newFakeSchedules("nightly", "hourly"), []string{"hourly", "nightly"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := scheduleRouter(NewScheduleHandler(tt.schedules, testLogger()))

			rec := serve(r, http.MethodGet, "/schedules")

			require.Equal(t, http.StatusOK, rec.Code)
			var resp ScheduleListResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, len(tt.expected), resp.Count)
			require.NotNil(t, resp.Schedules)
			names := make([]string, 0, len(resp.Schedules))
			for _, j := range resp.Schedules {
				names = append(names, j.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestGetSchedule(t *testing.T) {
	r := scheduleRouter(NewScheduleHandler(newFakeSchedules("nightly"), testLogger()))

	rec := serve(r, http.MethodGet, "/schedules/nightly")
	require.Equal(t, http.StatusOK, rec.Code)
	var job scheduler.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "nightly", job.Name)
	assert.Equal(t, "nightly.example.com", job.Target)

	rec = serve(r, http.MethodGet, "/schedules/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestGetSchedule_NoScheduler(t *testing.T) {
	r := scheduleRouter(NewScheduleHandler(nil, testLogger()))

	rec := serve(r, http.MethodGet, "/schedules/nightly")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodPost, "/schedules/nightly/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunSchedule(t *testing.T) {
	fake := newFakeSchedules("nightly")
	r := scheduleRouter(NewScheduleHandler(fake, testLogger()))

	rec := serve(r, http.MethodPost, "/schedules/nightly/run")

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"nightly"}, fake.triggered)
	var job scheduler.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.True(t, job.Running)
}

func TestRunSchedule_Errors(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		triggerErr   error
		expectStatus int
		expectCode   string
	}{
		{
			name:         "unknown job",
			path:         "/schedules/missing/run",
			expectStatus: http.StatusNotFound,
			expectCode:   "NOT_FOUND",
		},
		{
			name:         "already running",
			path:         "/schedules/nightly/run",
			triggerErr:   errors.NewScanError(errors.CodeConflict, "job already running"),
			expectStatus: http.StatusConflict,
			expectCode:   "CONFLICT",
		},
		{
			name:         "scheduler stopped",
			path:         "/schedules/nightly/run",
			triggerErr:   errors.NewScanError(errors.CodeServiceUnavailable, "scheduler stopped"),
			expectStatus: http.StatusServiceUnavailable,
			expectCode:   "SERVICE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSchedules("nightly")
			fake.triggerErr = tt.triggerErr
			r := scheduleRouter(NewScheduleHandler(fake, testLogger()))

			rec := serve(r, http.MethodPost, tt.path)

			assert.Equal(t, tt.expectStatus, rec.Code)
			assert.Equal(t, tt.expectCode, decodeError(t, rec).Code)
			assert.Empty(t, fake.triggered)
		})
	}
}
