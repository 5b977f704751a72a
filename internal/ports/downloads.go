package ports

import (
	"context"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

type DownloaderRepository interface {
	// GetDefaultEnabled renvoie le downloader par défaut, sinon le premier actif.
	// ErrNotFound s'il n'y en a aucun.
	GetDefaultEnabled(ctx context.Context) (domain.Downloader, error)
	Get(ctx context.Context, id int64) (domain.Downloader, error)
	List(ctx context.Context) ([]domain.Downloader, error)
	Insert(ctx context.Context, d domain.Downloader) (domain.Downloader, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) (domain.Task, error)
	Get(ctx context.Context, id int64) (domain.Task, error)
	List(ctx context.Context, limit int) ([]domain.Task, error)
	ListByStatus(ctx context.Context, status domain.TaskStatus) ([]domain.Task, error)
	// ClaimNextQueued passe la plus vieille tâche "queued" à "downloading" et la renvoie.
	// Renvoie ErrNotFound s'il n'y a rien à exécuter.
	ClaimNextQueued(ctx context.Context) (domain.Task, error)
	UpdateStatus(ctx context.Context, id int64, expected domain.TaskStatus, next domain.TaskStatus) (domain.Task, error)
	UpdateProgress(ctx context.Context, id int64, progress float64) (domain.Task, error)
	UpdateExternalID(ctx context.Context, id int64, externalID string) (domain.Task, error)
	UpdateError(ctx context.Context, id int64, code string, message string) (domain.Task, error)
}
