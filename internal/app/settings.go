package app

import (
	"context"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type SettingsService struct {
	repo ports.SettingsRepository
}

func NewSettingsService(repo ports.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

func (s *SettingsService) Put(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	def := domain.DefaultSettings()
	if settings.MaxWorkers <= 0 {
		settings.MaxWorkers = def.MaxWorkers
	}
	if settings.MaxConcurrentDownloads <= 0 {
		settings.MaxConcurrentDownloads = def.MaxConcurrentDownloads
	}
	// En dessous d'une minute on martèle les sites sources.
	if settings.DefaultIntervalSeconds < 60 {
		settings.DefaultIntervalSeconds = def.DefaultIntervalSeconds
	}
	return s.repo.Put(ctx, settings)
}
