package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

type TasksHandler struct {
	tasks *app.TaskService
}

func NewTasksHandler(tasks *app.TaskService) *TasksHandler {
	return &TasksHandler{tasks: tasks}
}

func (h *TasksHandler) Routes(r chi.Router) {
	r.Get("/tasks", h.list)
	r.Get("/tasks/{id}", h.get)
	r.Post("/tasks/{id}/pause", h.action(h.tasks.Pause))
	r.Post("/tasks/{id}/resume", h.action(h.tasks.Resume))
	r.Post("/tasks/{id}/cancel", h.action(h.tasks.Cancel))
}

func (h *TasksHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeInvalidParams, "invalid limit")
			return
		}
		limit = n
	}
	tasks, err := h.tasks.List(r.Context(), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []app.TaskDTO{}
	}
	httpjson.Write(w, http.StatusOK, tasks)
}

func (h *TasksHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	t, err := h.tasks.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, t)
}

func (h *TasksHandler) action(fn func(context.Context, int64) (app.TaskDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		t, err := fn(r.Context(), id)
		if err != nil {
			// Transition refusée : on renvoie la tâche dans son état courant.
			if errors.Is(err, domain.ErrInvalidTransition) {
				httpjson.Write(w, http.StatusConflict, map[string]any{"error": err.Error(), "task": t})
				return
			}
			writeAppError(w, r, err)
			return
		}
		httpjson.Write(w, http.StatusOK, t)
	}
}
