package httpapi

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/insomniacdoll/animeloader/internal/buildinfo"
	"github.com/insomniacdoll/animeloader/internal/httpjson"
)

var summaries = map[string]string{
	"GET /api/v1/health":                         "Health check",
	"GET /api/v1/version":                        "Build information",
	"GET /api/v1/events":                         "Server-Sent Events stream (task.*, item.downloaded)",
	"GET /api/v1/scheduler":                      "Scheduler state and jobs",
	"POST /api/v1/scheduler/start":               "Start the scheduler and reconcile auto-download feeds",
	"POST /api/v1/scheduler/stop":                "Stop the scheduler",
	"GET /api/v1/scheduler/jobs":                 "List scheduled jobs",
	"POST /api/v1/scheduler/jobs":                "Add or replace the job of a feed source",
	"DELETE /api/v1/scheduler/jobs/{jobID}":      "Remove a job",
	"POST /api/v1/scheduler/jobs/{jobID}/pause":  "Pause a job",
	"POST /api/v1/scheduler/jobs/{jobID}/resume": "Resume a job",
	"GET /api/v1/subjects":                       "List subjects",
	"GET /api/v1/subjects/{id}/feeds":            "List the feed sources of a subject",
	"GET /api/v1/feeds":                          "List feed sources",
	"GET /api/v1/feeds/{id}":                     "Get a feed source",
	"GET /api/v1/feeds/{id}/items":               "List the items of a feed source",
	"POST /api/v1/feeds/{id}/check":              "Run one ingestion cycle now",
	"PUT /api/v1/feeds/{id}/auto-download":       "Toggle auto-download",
	"POST /api/v1/smart-add/discover":            "Scrape a page for candidate subjects",
	"POST /api/v1/smart-add/commit":              "Persist a candidate subject and its feeds",
	"GET /api/v1/tasks":                          "List download tasks",
	"GET /api/v1/tasks/{id}":                     "Get a download task",
	"POST /api/v1/tasks/{id}/pause":              "Pause a task",
	"POST /api/v1/tasks/{id}/resume":             "Resume a task",
	"POST /api/v1/tasks/{id}/cancel":             "Cancel a task",
	"GET /api/v1/settings":                       "Get settings",
	"PUT /api/v1/settings":                       "Update settings",
}

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

// handleOpenAPI décrit les routes réellement montées (les services absents n'y figurent pas).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	jsonErr := map[string]any{
		"description": "Error",
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/Error"},
			},
		},
	}

	paths := map[string]any{}
	if s.routes != nil {
		_ = chi.Walk(s.routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			route = strings.TrimSuffix(route, "/")
			if route == "" || route == "/metrics" || strings.HasSuffix(route, "/openapi.json") {
				return nil
			}
			item, _ := paths[route].(map[string]any)
			if item == nil {
				item = map[string]any{}
				paths[route] = item
			}
			op := map[string]any{
				"summary": summaries[method+" "+route],
				"responses": map[string]any{
					"200":     map[string]any{"description": "OK"},
					"default": jsonErr,
				},
			}
			var params []any
			for _, m := range pathParam.FindAllStringSubmatch(route, -1) {
				params = append(params, map[string]any{
					"name":     m[1],
					"in":       "path",
					"required": true,
					"schema":   map[string]any{"type": "string"},
				})
			}
			if params != nil {
				op["parameters"] = params
			}
			item[strings.ToLower(method)] = op
			return nil
		})
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "animeloader API",
			"version": buildinfo.Current().Version,
		},
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type":     "object",
					"required": []any{"error"},
					"properties": map[string]any{
						"error": map[string]any{"type": "string"},
						"code":  map[string]any{"type": "string"},
					},
				},
			},
		},
		"paths": paths,
	}

	httpjson.Write(w, http.StatusOK, doc)
}
