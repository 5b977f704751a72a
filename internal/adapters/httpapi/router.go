package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

// Deps : chaque service est optionnel, ses routes ne sont montées que s'il est fourni.
type Deps struct {
	Scheduler *app.Scheduler
	Feeds     *app.FeedSourceService
	SmartAdd  *app.SmartAdd
	Tasks     *app.TaskService
	Settings  *app.SettingsService
	Bus       ports.EventBus
	Gatherer  prometheus.Gatherer
	// OnSettingsUpdated applique les réglages à chaud (workers, limiter, intervalle).
	OnSettingsUpdated func(domain.Settings)
}

type Server struct {
	logger zerolog.Logger
	deps   Deps
	routes chi.Routes
}

func NewServer(logger zerolog.Logger, deps Deps) *Server {
	return &Server{logger: logger, deps: deps}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))

	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/openapi.json", s.handleOpenAPI)
		// Le flux SSE ne doit pas subir le timeout des requêtes.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultRequestTimeout))

			if s.deps.Scheduler != nil {
				NewSchedulerHandler(s.deps.Scheduler).Routes(r)
			}
			if s.deps.Feeds != nil {
				NewFeedsHandler(s.deps.Feeds).Routes(r)
			}
			if s.deps.SmartAdd != nil {
				NewSmartAddHandler(s.deps.SmartAdd).Routes(r)
			}
			if s.deps.Tasks != nil {
				NewTasksHandler(s.deps.Tasks).Routes(r)
			}
			if s.deps.Settings != nil {
				NewSettingsHandler(s.deps.Settings, s.deps.OnSettingsUpdated).Routes(r)
			}
		})
	})

	s.routes = r
	return r
}
