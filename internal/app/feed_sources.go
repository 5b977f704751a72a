package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type FeedSourceService struct {
	logger    zerolog.Logger
	subjects  ports.SubjectRepository
	feeds     ports.FeedSourceRepository
	items     ports.ItemRepository
	runner    FeedRunner
	scheduler JobScheduler
}

func NewFeedSourceService(
	logger zerolog.Logger,
	subjects ports.SubjectRepository,
	feeds ports.FeedSourceRepository,
	items ports.ItemRepository,
	runner FeedRunner,
	scheduler JobScheduler,
) *FeedSourceService {
	return &FeedSourceService{logger: logger, subjects: subjects, feeds: feeds, items: items, runner: runner, scheduler: scheduler}
}

func (s *FeedSourceService) Get(ctx context.Context, id int64) (domain.FeedSource, error) {
	fs, err := s.feeds.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.FeedSource{}, coded(CodeFeedSourceNotFound, "feed source not found", err)
	}
	return fs, err
}

func (s *FeedSourceService) List(ctx context.Context) ([]domain.FeedSource, error) {
	return s.feeds.List(ctx)
}

func (s *FeedSourceService) ListByOwner(ctx context.Context, subjectID int64) ([]domain.FeedSource, error) {
	if _, err := s.subjects.Get(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.feeds.ListByOwner(ctx, subjectID)
}

func (s *FeedSourceService) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	return s.subjects.List(ctx)
}

func (s *FeedSourceService) ListItems(ctx context.Context, feedSourceID int64) ([]domain.Item, error) {
	if _, err := s.Get(ctx, feedSourceID); err != nil {
		return nil, err
	}
	return s.items.ListByFeedSource(ctx, feedSourceID)
}

// SetAutoDownload met à jour le flag et synchronise le job du scheduler
// (ajout si activé et scheduler démarré, retrait sinon).
func (s *FeedSourceService) SetAutoDownload(ctx context.Context, id int64, enabled bool) (domain.FeedSource, error) {
	fs, err := s.feeds.UpdateAutoDownload(ctx, id, enabled)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return domain.FeedSource{}, coded(CodeFeedSourceNotFound, "feed source not found", err)
		}
		return domain.FeedSource{}, err
	}

	if s.scheduler == nil {
		return fs, nil
	}
	if enabled && fs.Active {
		if s.scheduler.Running() {
			if _, err := s.scheduler.AddJob(fs.ID, 0, true); err != nil {
				s.logger.Warn().Err(err).Int64("feed_source_id", fs.ID).Msg("failed to schedule feed source")
			}
		}
	} else {
		s.scheduler.RemoveJob(JobID(fs.ID))
	}
	return fs, nil
}

// Check lance un run manuel. Contrairement au scheduler, l'échec est renvoyé
// à l'appelant avec l'étape en cause.
func (s *FeedSourceService) Check(ctx context.Context, id int64, autoDownload bool) (RunResult, error) {
	res := s.runner.Run(ctx, id, autoDownload)
	return res, res.Err
}
