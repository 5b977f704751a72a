package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type WorkerOptions struct {
	PollInterval     time.Duration
	ProgressInterval time.Duration
	// DownloadLimiter est partagé par tous les workers (maxConcurrentDownloads).
	DownloadLimiter *DynamicLimiter
}

func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		PollInterval:     750 * time.Millisecond,
		ProgressInterval: 2 * time.Second,
	}
}

// WorkerDeps regroupe ce dont un worker a besoin pour exécuter une tâche.
type WorkerDeps struct {
	Tasks       ports.TaskRepository
	Items       ports.ItemRepository
	Downloaders ports.DownloaderRepository
	Backends    *BackendRegistry
	Bus         ports.EventBus
	Metrics     *Metrics
}

type Worker struct {
	logger zerolog.Logger
	deps   WorkerDeps
	opts   WorkerOptions
}

func NewWorker(logger zerolog.Logger, deps WorkerDeps, opts WorkerOptions) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultWorkerOptions().PollInterval
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultWorkerOptions().ProgressInterval
	}
	return &Worker{logger: logger, deps: deps, opts: opts}
}

func (w *Worker) Run(ctx context.Context) {
	w.run(ctx, ctx)
}

// run arrête de réclamer des tâches quand stop se termine, mais la tâche en
// cours continue sous ctx : un worker retiré du pool finit son téléchargement.
func (w *Worker) run(stop, ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop.Err() != nil || ctx.Err() != nil {
				return
			}
			task, err := w.deps.Tasks.ClaimNextQueued(ctx)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					continue
				}
				w.logger.Error().Err(err).Msg("claim next task failed")
				continue
			}
			w.execute(ctx, task)
		}
	}
}

func (w *Worker) execute(ctx context.Context, task domain.Task) {
	logger := w.logger.With().Int64("task_id", task.ID).Int64("item_id", task.ItemID).Logger()
	logger.Info().Msg("task claimed")
	PublishTaskEvent(w.deps.Bus, "task.started", task)

	// Avant la soumission au backend, un arrêt remet la tâche en file au lieu
	// de l'échouer.
	abort := func(code string, err error) {
		if ctx.Err() != nil {
			w.requeue(ctx, logger, task)
			return
		}
		w.fail(ctx, logger, task, code, err)
	}

	item, err := w.deps.Items.Get(ctx, task.ItemID)
	if err != nil {
		abort(CodeInvalidParams, err)
		return
	}
	dl, err := w.deps.Downloaders.Get(ctx, task.DownloaderID)
	if err != nil {
		abort(CodeNoBackend, err)
		return
	}
	backend, err := w.deps.Backends.For(dl)
	if err != nil {
		code := ErrorCode(err)
		if code == "" {
			code = CodeBackendError
		}
		abort(code, err)
		return
	}

	if lim := w.opts.DownloadLimiter; lim != nil {
		if err := lim.Acquire(ctx); err != nil {
			w.requeue(ctx, logger, task)
			return
		}
		defer lim.Release()
	}
	if ctx.Err() != nil {
		w.requeue(ctx, logger, task)
		return
	}

	externalID, err := backend.Add(ctx, item.URL)
	if err != nil {
		w.fail(ctx, logger, task, CodeBackendError, err)
		return
	}
	if updated, err := w.deps.Tasks.UpdateExternalID(ctx, task.ID, externalID); err == nil {
		task = updated
	}
	logger.Info().Str("downloader", dl.Name).Str("external_id", externalID).Msg("download submitted")

	w.monitor(ctx, logger, task, backend, externalID)
}

// Resume reprend le suivi d'une tâche déjà soumise au backend (redémarrage).
func (w *Worker) Resume(ctx context.Context, task domain.Task) {
	logger := w.logger.With().Int64("task_id", task.ID).Int64("item_id", task.ItemID).Str("external_id", task.ExternalID).Logger()
	dl, err := w.deps.Downloaders.Get(ctx, task.DownloaderID)
	if err != nil {
		w.fail(ctx, logger, task, CodeNoBackend, err)
		return
	}
	backend, err := w.deps.Backends.For(dl)
	if err != nil {
		w.fail(ctx, logger, task, CodeBackendError, err)
		return
	}
	logger.Info().Msg("monitoring resumed")
	w.monitor(ctx, logger, task, backend, task.ExternalID)
}

// requeue remet en file une tâche réclamée qui n'a pas été soumise au backend.
// Le contexte est peut-être déjà annulé (arrêt) : l'écriture doit passer quand même.
func (w *Worker) requeue(ctx context.Context, logger zerolog.Logger, task domain.Task) {
	queued, err := w.deps.Tasks.UpdateStatus(context.WithoutCancel(ctx), task.ID, domain.TaskDownloading, domain.TaskQueued)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to requeue task")
		return
	}
	logger.Info().Msg("task requeued")
	PublishTaskEvent(w.deps.Bus, "task.queued", queued)
}

// monitor suit la tâche jusqu'à la fin. Pause/reprise/annulation sont
// décidées par le statut en base et répercutées sur le backend.
func (w *Worker) monitor(ctx context.Context, logger zerolog.Logger, task domain.Task, backend Backend, externalID string) {
	ticker := time.NewTicker(w.opts.ProgressInterval)
	defer ticker.Stop()

	backendPaused := false
	for {
		select {
		case <-ctx.Done():
			// La tâche reste "downloading" avec son ExternalID ; WorkerPool.Recover
			// reprend le suivi au prochain démarrage.
			logger.Info().Msg("monitoring interrupted")
			return
		case <-ticker.C:
		}

		current, err := w.deps.Tasks.Get(ctx, task.ID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to reload task")
			return
		}

		switch current.Status {
		case domain.TaskCancelled:
			if err := backend.Remove(ctx, externalID); err != nil {
				logger.Warn().Err(err).Msg("backend remove failed")
			}
			logger.Info().Msg("task cancelled")
			return
		case domain.TaskPaused:
			if !backendPaused {
				if err := backend.Pause(ctx, externalID); err != nil {
					logger.Warn().Err(err).Msg("backend pause failed")
				}
				backendPaused = true
			}
			continue
		case domain.TaskDownloading:
			if backendPaused {
				if err := backend.Resume(ctx, externalID); err != nil {
					logger.Warn().Err(err).Msg("backend resume failed")
				}
				backendPaused = false
			}
		default:
			return
		}

		progress, err := backend.Progress(ctx, externalID)
		if err != nil {
			w.fail(ctx, logger, current, CodeBackendError, err)
			return
		}
		updated, err := w.deps.Tasks.UpdateProgress(ctx, task.ID, progress)
		if err == nil {
			PublishTaskEvent(w.deps.Bus, "task.progress", updated)
		}
		if progress < 1 {
			continue
		}

		finished, err := w.deps.Tasks.UpdateStatus(ctx, task.ID, domain.TaskDownloading, domain.TaskCompleted)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to mark task completed")
			return
		}
		logger.Info().Msg("task completed")
		PublishTaskEvent(w.deps.Bus, "task.completed", finished)
		return
	}
}

func (w *Worker) fail(ctx context.Context, logger zerolog.Logger, task domain.Task, code string, cause error) {
	logger.Error().Err(cause).Str("code", code).Msg("task failed")
	_, _ = w.deps.Tasks.UpdateError(ctx, task.ID, code, cause.Error())

	for _, from := range []domain.TaskStatus{domain.TaskDownloading, domain.TaskPaused, domain.TaskQueued} {
		failed, err := w.deps.Tasks.UpdateStatus(ctx, task.ID, from, domain.TaskFailed)
		if err == nil {
			PublishTaskEvent(w.deps.Bus, "task.failed", failed)
			return
		}
	}
}
