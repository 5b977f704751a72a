package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

type SmartAddHandler struct {
	smartAdd *app.SmartAdd
}

func NewSmartAddHandler(smartAdd *app.SmartAdd) *SmartAddHandler {
	return &SmartAddHandler{smartAdd: smartAdd}
}

func (h *SmartAddHandler) Routes(r chi.Router) {
	r.Post("/smart-add/discover", h.discover)
	r.Post("/smart-add/commit", h.commit)
}

type discoverRequest struct {
	URL string `json:"url"`
}

type commitRequest struct {
	URL          string `json:"url"`
	SubjectIndex int    `json:"subjectIndex"`
	FeedIndices  []int  `json:"feedIndices"`
}

func (h *SmartAddHandler) discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.smartAdd.Discover(r.Context(), req.URL)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}

func (h *SmartAddHandler) commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpjson.WriteError(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.smartAdd.Commit(r.Context(), req.URL, req.SubjectIndex, req.FeedIndices)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.SubjectCreated {
		status = http.StatusCreated
	}
	httpjson.Write(w, status, toCommitResultDTO(res))
}
