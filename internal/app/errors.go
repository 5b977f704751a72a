package app

import (
	"errors"

	"github.com/insomniacdoll/animeloader/internal/ports"
)

var (
	ErrNotFound = ports.ErrNotFound
	ErrConflict = ports.ErrConflict
)

// Codes stables exposés par l'API ; ils indiquent l'étape en échec.
const (
	CodeFeedSourceNotFound  = "feed_source_not_found"
	CodeNoParser            = "no_parser"
	CodeFeedUnreachable     = "feed_unreachable"
	CodeFeedUnparsable      = "feed_unparsable"
	CodeNoScraper           = "no_scraper"
	CodeScrapeFailed        = "scrape_failed"
	CodeNoCandidates        = "no_candidates"
	CodeInvalidIndex        = "invalid_index"
	CodeInvalidParams       = "invalid_params"
	CodeSchedulerNotRunning = "scheduler_not_running"
	CodeJobNotFound         = "job_not_found"
	CodeBackendError        = "backend_error"
	CodeNoBackend           = "no_backend"
	CodeRunInProgress       = "run_in_progress"
)

// CodedError permet de renvoyer un code d'erreur stable,
// persisté dans Task.errorCode ou renvoyé par l'API.
type CodedError struct {
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

func coded(code, msg string, err error) *CodedError {
	return &CodedError{Code: code, Message: msg, Err: err}
}

// ErrorCode renvoie le code d'une CodedError dans la chaîne, ou "".
func ErrorCode(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
