package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

// TaskCreator est le collaborateur d'exécution vu par le trigger.
// Création et démarrage sont séparés : un flux manuel peut créer sans démarrer.
type TaskCreator interface {
	// DefaultDownloader renvoie ErrNotFound s'il n'existe aucun downloader actif.
	DefaultDownloader(ctx context.Context) (domain.Downloader, error)
	CreateTask(ctx context.Context, itemID, downloaderID int64) (int64, error)
	StartTask(ctx context.Context, taskID int64) error
}

type DownloadTrigger struct {
	logger  zerolog.Logger
	tasks   TaskCreator
	metrics *Metrics
}

func NewDownloadTrigger(logger zerolog.Logger, tasks TaskCreator, metrics *Metrics) *DownloadTrigger {
	return &DownloadTrigger{logger: logger, tasks: tasks, metrics: metrics}
}

// OnNewItem crée puis démarre une tâche pour item. Sans downloader actif,
// renvoie (0, nil) : ce n'est pas une erreur.
func (t *DownloadTrigger) OnNewItem(ctx context.Context, item domain.Item) (int64, error) {
	dl, err := t.tasks.DefaultDownloader(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			t.logger.Info().Int64("item_id", item.ID).Msg("no enabled downloader, skipping auto download")
			t.metrics.triggered("skipped")
			return 0, nil
		}
		t.metrics.triggered("failed")
		return 0, err
	}

	taskID, err := t.tasks.CreateTask(ctx, item.ID, dl.ID)
	if err != nil {
		t.metrics.triggered("failed")
		return 0, err
	}
	if err := t.tasks.StartTask(ctx, taskID); err != nil {
		t.metrics.triggered("failed")
		return taskID, err
	}

	t.logger.Info().Int64("item_id", item.ID).Int64("task_id", taskID).Str("downloader", dl.Name).Msg("download task started")
	t.metrics.triggered("started")
	return taskID, nil
}
