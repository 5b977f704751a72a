package ports

import (
	"context"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

// Les Insert renvoient ErrConflict sur violation d'unicité ; les Get* renvoient ErrNotFound.

type SubjectRepository interface {
	GetByOriginURL(ctx context.Context, originURL string) (domain.Subject, error)
	Insert(ctx context.Context, s domain.Subject) (domain.Subject, error)
	Get(ctx context.Context, id int64) (domain.Subject, error)
	List(ctx context.Context) ([]domain.Subject, error)
}

type FeedSourceRepository interface {
	GetByOwnerAndURL(ctx context.Context, subjectID int64, url string) (domain.FeedSource, error)
	Insert(ctx context.Context, fs domain.FeedSource) (domain.FeedSource, error)
	Get(ctx context.Context, id int64) (domain.FeedSource, error)
	List(ctx context.Context) ([]domain.FeedSource, error)
	ListByOwner(ctx context.Context, subjectID int64) ([]domain.FeedSource, error)
	// ListAutoDownload renvoie les sources actives avec auto-download activé.
	ListAutoDownload(ctx context.Context) ([]domain.FeedSource, error)
	UpdateLastChecked(ctx context.Context, id int64, at time.Time) error
	UpdateAutoDownload(ctx context.Context, id int64, enabled bool) (domain.FeedSource, error)
}

type ItemRepository interface {
	GetByFeedSourceAndURL(ctx context.Context, feedSourceID int64, url string) (domain.Item, error)
	Insert(ctx context.Context, it domain.Item) (domain.Item, error)
	Get(ctx context.Context, id int64) (domain.Item, error)
	ListByFeedSource(ctx context.Context, feedSourceID int64) ([]domain.Item, error)
	// KnownURLs renvoie l'union des URL et des URL d'origine (pré-normalisation) d'une source.
	KnownURLs(ctx context.Context, feedSourceID int64) (map[string]struct{}, error)
	MarkDownloaded(ctx context.Context, id int64) error
}
