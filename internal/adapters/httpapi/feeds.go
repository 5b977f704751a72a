package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

type FeedsHandler struct {
	feeds *app.FeedSourceService
}

func NewFeedsHandler(feeds *app.FeedSourceService) *FeedsHandler {
	return &FeedsHandler{feeds: feeds}
}

func (h *FeedsHandler) Routes(r chi.Router) {
	r.Get("/subjects", h.listSubjects)
	r.Get("/subjects/{id}/feeds", h.listSubjectFeeds)

	r.Get("/feeds", h.list)
	r.Get("/feeds/{id}", h.get)
	r.Get("/feeds/{id}/items", h.listItems)
	r.Post("/feeds/{id}/check", h.check)
	r.Put("/feeds/{id}/auto-download", h.setAutoDownload)
}

func (h *FeedsHandler) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.feeds.ListSubjects(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]SubjectDTO, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, toSubjectDTO(s))
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *FeedsHandler) listSubjectFeeds(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	feeds, err := h.feeds.ListByOwner(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]FeedSourceDTO, 0, len(feeds))
	for _, fs := range feeds {
		out = append(out, toFeedSourceDTO(fs))
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *FeedsHandler) list(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.feeds.List(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]FeedSourceDTO, 0, len(feeds))
	for _, fs := range feeds {
		out = append(out, toFeedSourceDTO(fs))
	}
	httpjson.Write(w, http.StatusOK, out)
}

func (h *FeedsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	fs, err := h.feeds.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toFeedSourceDTO(fs))
}

func (h *FeedsHandler) listItems(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	items, err := h.feeds.ListItems(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toItemDTOs(items))
}

type checkRequest struct {
	AutoDownload *bool `json:"autoDownload"`
}

// check lance un cycle immédiat. autoDownload (query ou corps JSON, vrai par
// défaut) à false désactive le déclenchement des téléchargements.
func (h *FeedsHandler) check(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	auto := true
	if v := r.URL.Query().Get("autoDownload"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeInvalidParams, "invalid autoDownload")
			return
		}
		auto = b
	} else if r.ContentLength > 0 {
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if req.AutoDownload != nil {
			auto = *req.AutoDownload
		}
	}
	res, err := h.feeds.Check(r.Context(), id, auto)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toRunResultDTO(res))
}

type autoDownloadRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *FeedsHandler) setAutoDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req autoDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	fs, err := h.feeds.SetAutoDownload(r.Context(), id, req.Enabled)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toFeedSourceDTO(fs))
}
