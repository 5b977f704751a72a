package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/buildinfo"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

const defaultRequestTimeout = 60 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	logger := hlog.FromRequest(r)
	logger.Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpjson.WriteCodedError(w, http.StatusBadRequest, app.CodeInvalidParams, "invalid id")
		return 0, false
	}
	return id, true
}

// writeAppError traduit le code d'étape en statut HTTP.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := app.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case app.CodeFeedSourceNotFound, app.CodeJobNotFound:
		status = http.StatusNotFound
	case app.CodeNoParser, app.CodeNoScraper, app.CodeInvalidIndex, app.CodeInvalidParams, app.CodeNoCandidates:
		status = http.StatusBadRequest
	case app.CodeFeedUnreachable, app.CodeFeedUnparsable, app.CodeScrapeFailed, app.CodeBackendError:
		status = http.StatusBadGateway
	case app.CodeSchedulerNotRunning, app.CodeNoBackend:
		status = http.StatusServiceUnavailable
	case app.CodeRunInProgress:
		status = http.StatusConflict
	case "":
		switch {
		case errors.Is(err, app.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, app.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
			status = http.StatusConflict
		}
	}
	if status == http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	httpjson.WriteCodedError(w, status, code, err.Error())
}
