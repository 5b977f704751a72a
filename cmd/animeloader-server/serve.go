package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insomniacdoll/animeloader/internal/adapters/httpapi"
	"github.com/insomniacdoll/animeloader/internal/adapters/memorybus"
	"github.com/insomniacdoll/animeloader/internal/adapters/qbittorrent"
	"github.com/insomniacdoll/animeloader/internal/adapters/sqlite"
	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/buildinfo"
	"github.com/insomniacdoll/animeloader/internal/config"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
	"github.com/insomniacdoll/animeloader/internal/linktype"
	"github.com/insomniacdoll/animeloader/internal/ports"
	"github.com/insomniacdoll/animeloader/internal/sources"
)

func RunServeCommand() *cobra.Command {
	var configFile string

	command := &cobra.Command{
		Use:   "serve",
		Short: "Démarre l'API, le scheduler et les workers",
	}

	command.Flags().StringVar(&configFile, "config", "", "fichier de configuration (yaml, toml ou json)")
	command.Flags().String("addr", "", "adresse d'écoute (ex: 127.0.0.1:8080)")
	command.Flags().String("db", "", "chemin SQLite")
	command.Flags().String("log-level", "", "niveau de log (debug, info, warn, error)")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, buildinfo.Version, func(v *viper.Viper) error {
			for key, flag := range map[string]string{"http.addr": "addr", "db.path": "db", "log.level": "log-level"} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	}

	return command
}

func serve(parent context.Context, cfg config.Config) error {
	logger, logCloser, err := config.NewLogger(cfg.Log, os.Stdout, "animeloader-server")
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", cfg.DB.Path).Msg("starting")

	if parent == nil {
		parent = context.Background()
	}
	shutdownCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(shutdownCtx, cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	subjects := sqlite.NewSubjectsRepository(db.SQL)
	feeds := sqlite.NewFeedSourcesRepository(db.SQL)
	items := sqlite.NewItemsRepository(db.SQL)
	tasks := sqlite.NewTasksRepository(db.SQL)
	downloaders := sqlite.NewDownloadersRepository(db.SQL)
	settingsSvc := app.NewSettingsService(sqlite.NewSettingsRepository(db.SQL))

	settings, err := settingsSvc.Get(shutdownCtx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	bus := memorybus.New()
	defer bus.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics(reg)

	getter := fetch.New(fetch.Options{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		MaxBytes:  cfg.Fetch.MaxBytes,
	})
	registry := sources.DefaultRegistry(getter)
	gate := app.NewDedupGate(subjects, feeds, items)

	if err := ensureDownloader(shutdownCtx, logger, downloaders, cfg.QBittorrent); err != nil {
		return err
	}

	taskSvc := app.NewTaskService(tasks, downloaders, items, bus)
	trigger := app.NewDownloadTrigger(logger.With().Str("component", "trigger").Logger(), taskSvc, metrics)
	pipeline := app.NewPipeline(
		logger.With().Str("component", "pipeline").Logger(),
		feeds, items, registry, linktype.NewNormalizer(getter), gate, trigger, metrics,
		app.PipelineOptions{NormalizeConcurrency: cfg.Pipeline.NormalizeConcurrency},
	)

	// L'intervalle persisté dans les settings prime sur la config.
	schedOpts := app.SchedulerOptions{DefaultInterval: cfg.Scheduler.DefaultInterval, ReconcileOnStart: cfg.Scheduler.ReconcileOnStart}
	scheduler := app.NewScheduler(logger.With().Str("component", "scheduler").Logger(), pipeline, feeds, metrics, schedOpts)
	if settings.DefaultIntervalSeconds > 0 {
		scheduler.SetDefaultInterval(time.Duration(settings.DefaultIntervalSeconds) * time.Second)
	}
	if cfg.Scheduler.AutoStart {
		if err := scheduler.Start(shutdownCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	smartAdd := app.NewSmartAdd(logger.With().Str("component", "smart-add").Logger(), registry, gate, scheduler)
	feedSvc := app.NewFeedSourceService(logger, subjects, feeds, items, pipeline, scheduler)

	backends := app.NewBackendRegistry()
	backends.Register(domain.DownloaderMock, func(domain.Downloader) (app.Backend, error) {
		return app.NewMockBackend(0), nil
	})
	backends.Register(domain.DownloaderQBittorrent, qbittorrent.Factory(
		logger.With().Str("component", "qbittorrent").Logger(),
		qbittorrent.Config{
			Host:     cfg.QBittorrent.Host,
			Username: cfg.QBittorrent.Username,
			Password: cfg.QBittorrent.Password,
			SavePath: cfg.QBittorrent.SavePath,
			Category: cfg.QBittorrent.Category,
		},
	))

	maxDownloads := cfg.Workers.MaxConcurrentDownloads
	if settings.MaxConcurrentDownloads > 0 {
		maxDownloads = settings.MaxConcurrentDownloads
	}
	downloadLimiter := app.NewDynamicLimiter(maxDownloads)

	workerOpts := app.DefaultWorkerOptions()
	workerOpts.DownloadLimiter = downloadLimiter
	pool := app.NewWorkerPool(shutdownCtx, logger, app.WorkerDeps{
		Tasks:       tasks,
		Items:       items,
		Downloaders: downloaders,
		Backends:    backends,
		Bus:         bus,
		Metrics:     metrics,
	}, workerOpts)
	workers := cfg.Workers.Count
	if settings.MaxWorkers > 0 {
		workers = settings.MaxWorkers
	}
	if _, _, err := pool.Recover(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("stale task recovery failed")
	}
	pool.SetCount(workers)
	logger.Info().Int("workers", workers).Int("max_downloads", maxDownloads).Msg("workers started")

	updater := app.NewDownloadCompletionUpdater(logger.With().Str("component", "download-updater").Logger(), bus, items)
	go updater.Run(shutdownCtx)

	srv := httpapi.NewServer(logger, httpapi.Deps{
		Scheduler: scheduler,
		Feeds:     feedSvc,
		SmartAdd:  smartAdd,
		Tasks:     taskSvc,
		Settings:  settingsSvc,
		Bus:       bus,
		Gatherer:  reg,
		OnSettingsUpdated: func(updated domain.Settings) {
			if updated.MaxWorkers > 0 {
				pool.SetCount(updated.MaxWorkers)
			}
			downloadLimiter.SetLimit(updated.MaxConcurrentDownloads)
			scheduler.SetDefaultInterval(time.Duration(updated.DefaultIntervalSeconds) * time.Second)
		},
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	// Plus de nouveaux runs ; on laisse finir ceux en cours dans la limite du délai.
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(cfg.Scheduler.ShutdownGrace):
		logger.Warn().Dur("grace", cfg.Scheduler.ShutdownGrace).Msg("feed runs still in progress, giving up")
	}
	pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Ferme les flux SSE avant Shutdown, sinon il attend leur fin.
	bus.Close()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("bye")
	return nil
}

// ensureDownloader crée un downloader qBittorrent par défaut au premier
// démarrage si qbittorrent.host est renseigné. Sans downloader, les items
// sont enregistrés mais aucun téléchargement n'est lancé.
func ensureDownloader(ctx context.Context, logger zerolog.Logger, repo ports.DownloaderRepository, qb config.QBittorrentConfig) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list downloaders: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if qb.Host == "" {
		logger.Warn().Msg("no downloader configured: auto-download will only record items")
		return nil
	}
	d, err := repo.Insert(ctx, domain.Downloader{
		Name:      "qbittorrent",
		Type:      domain.DownloaderQBittorrent,
		Enabled:   true,
		IsDefault: true,
		Config:    "{}",
	})
	if err != nil {
		return fmt.Errorf("create default downloader: %w", err)
	}
	logger.Info().Int64("downloader_id", d.ID).Str("host", qb.Host).Msg("default qbittorrent downloader created")
	return nil
}
