package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anstrom/reconnoiter/internal/errors"
	"github.com/anstrom/reconnoiter/internal/logging"
	"github.com/anstrom/reconnoiter/internal/scheduler"
)

// Schedules exposes configured recurring jobs. *scheduler.Scheduler
// satisfies it.
type Schedules interface {
	Jobs() []scheduler.JobStatus
	Job(name string) (scheduler.JobStatus, bool)
	Trigger(name string) error
}

// ScheduleListResponse lists every scheduled job.
type ScheduleListResponse struct {
	Schedules []scheduler.JobStatus `json:"schedules"`
	Count     int                   `json:"count"`
}

// ScheduleHandler handles schedule endpoints.
type ScheduleHandler struct {
	schedules Schedules
	logger    *logging.Logger
}

// NewScheduleHandler creates a new schedule handler. schedules may be nil
// when the server runs without a scheduler.
func NewScheduleHandler(schedules Schedules, logger *logging.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		schedules: schedules,
		logger:    logger.WithFields("handler", "schedule"),
	}
}

// ListSchedules returns every job with its latest outcome.
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.schedules != nil {
		jobs = h.schedules.Jobs()
	}
	writeJSON(w, r, http.StatusOK, ScheduleListResponse{Schedules: jobs, Count: len(jobs)})
}

// GetSchedule returns one job by name.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if h.schedules == nil {
		writeCodedError(w, r, errors.ErrNotFound("schedule", name))
		return
	}
	job, ok := h.schedules.Job(name)
	if !ok {
		writeCodedError(w, r, errors.ErrNotFound("schedule", name))
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// RunSchedule starts a job immediately. The run continues after the
// response; poll GetSchedule for its outcome.
func (h *ScheduleHandler) RunSchedule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if h.schedules == nil {
		writeCodedError(w, r, errors.ErrNotFound("schedule", name))
		return
	}
	if err := h.schedules.Trigger(name); err != nil {
		writeCodedError(w, r, err)
		return
	}

	h.logger.Info("Schedule triggered manually", "name", name)
	job, _ := h.schedules.Job(name)
	writeJSON(w, r, http.StatusAccepted, job)
}
