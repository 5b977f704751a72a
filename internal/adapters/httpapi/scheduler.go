package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

type SchedulerHandler struct {
	scheduler *app.Scheduler
}

func NewSchedulerHandler(scheduler *app.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

func (h *SchedulerHandler) Routes(r chi.Router) {
	r.Get("/scheduler", h.status)
	r.Post("/scheduler/start", h.start)
	r.Post("/scheduler/stop", h.stop)

	r.Get("/scheduler/jobs", h.listJobs)
	r.Post("/scheduler/jobs", h.addJob)
	r.Delete("/scheduler/jobs/{jobID}", h.removeJob)
	r.Post("/scheduler/jobs/{jobID}/pause", h.pauseJob)
	r.Post("/scheduler/jobs/{jobID}/resume", h.resumeJob)
}

type schedulerStatus struct {
	Running bool                  `json:"running"`
	Jobs    []domain.ScheduledJob `json:"jobs"`
}

func (h *SchedulerHandler) snapshot() schedulerStatus {
	jobs := h.scheduler.ListJobs()
	if jobs == nil {
		jobs = []domain.ScheduledJob{}
	}
	return schedulerStatus{Running: h.scheduler.Running(), Jobs: jobs}
}

func (h *SchedulerHandler) status(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.snapshot())
}

func (h *SchedulerHandler) start(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Start(r.Context()); err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, h.snapshot())
}

func (h *SchedulerHandler) stop(w http.ResponseWriter, r *http.Request) {
	// On n'attend pas la fin des jobs en cours : le client reçoit l'état immédiatement.
	_ = h.scheduler.Stop()
	httpjson.Write(w, http.StatusOK, h.snapshot())
}

func (h *SchedulerHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.snapshot().Jobs)
}

type addJobRequest struct {
	FeedSourceID    int64 `json:"feedSourceId"`
	IntervalSeconds int   `json:"intervalSeconds"`
	AutoDownload    *bool `json:"autoDownload"`
}

func (h *SchedulerHandler) addJob(w http.ResponseWriter, r *http.Request) {
	var req addJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	auto := true
	if req.AutoDownload != nil {
		auto = *req.AutoDownload
	}
	jobID, err := h.scheduler.AddJob(req.FeedSourceID, req.IntervalSeconds, auto)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, map[string]string{"jobId": jobID})
}

func (h *SchedulerHandler) removeJob(w http.ResponseWriter, r *http.Request) {
	if !h.scheduler.RemoveJob(chi.URLParam(r, "jobID")) {
		httpjson.WriteCodedError(w, http.StatusNotFound, app.CodeJobNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulerHandler) pauseJob(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.PauseJob(chi.URLParam(r, "jobID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (h *SchedulerHandler) resumeJob(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.ResumeJob(chi.URLParam(r, "jobID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "scheduled"})
}
