package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/sources"
)

type SiteScraperResolver interface {
	SiteScraperFor(url string) (sources.SiteScraper, error)
}

// JobScheduler est la partie du Scheduler utilisée hors du scheduler lui-même.
type JobScheduler interface {
	Running() bool
	AddJob(feedSourceID int64, intervalSeconds int, autoDownload bool) (string, error)
	RemoveJob(jobID string) bool
}

type DiscoverResult = sources.ScrapeResult

type CommitResult struct {
	Subject        domain.Subject
	SubjectCreated bool
	FeedSources    []domain.FeedSource
	ScheduledJobs  []string
}

type SmartAdd struct {
	logger    zerolog.Logger
	scrapers  SiteScraperResolver
	gate      *DedupGate
	scheduler JobScheduler
}

func NewSmartAdd(logger zerolog.Logger, scrapers SiteScraperResolver, gate *DedupGate, scheduler JobScheduler) *SmartAdd {
	return &SmartAdd{logger: logger, scrapers: scrapers, gate: gate, scheduler: scheduler}
}

func (s *SmartAdd) Discover(ctx context.Context, url string) (DiscoverResult, error) {
	if url == "" {
		return DiscoverResult{}, coded(CodeInvalidParams, "url is required", nil)
	}
	scraper, err := s.scrapers.SiteScraperFor(url)
	if err != nil {
		return DiscoverResult{}, coded(CodeNoScraper, "no site scraper for "+url, err)
	}
	res, err := scraper.Scrape(ctx, url)
	if err != nil {
		return DiscoverResult{}, coded(CodeScrapeFailed, "scrape "+url, err)
	}
	if res.SiteName == "" {
		res.SiteName = scraper.Name()
	}
	s.logger.Info().Str("url", url).Str("site", res.SiteName).Int("candidates", len(res.Candidates)).Msg("catalog page scraped")
	return res, nil
}

// Commit re-scrape la page (elle peut avoir changé depuis Discover), valide
// les index (base 1, inclus) puis persiste via DedupGate.
// subjectIndex 0 n'est accepté que s'il y a un seul candidat.
func (s *SmartAdd) Commit(ctx context.Context, url string, subjectIndex int, feedIndices []int) (CommitResult, error) {
	found, err := s.Discover(ctx, url)
	if err != nil {
		return CommitResult{}, err
	}
	if len(found.Candidates) == 0 {
		return CommitResult{}, coded(CodeNoCandidates, "no subject found at "+url, nil)
	}

	if subjectIndex == 0 && len(found.Candidates) == 1 {
		subjectIndex = 1
	}
	if subjectIndex < 1 || subjectIndex > len(found.Candidates) {
		return CommitResult{}, coded(CodeInvalidIndex,
			fmt.Sprintf("subject index %d out of range [1, %d]", subjectIndex, len(found.Candidates)), nil)
	}
	cand := found.Candidates[subjectIndex-1]

	for _, idx := range feedIndices {
		if idx < 1 || idx > len(cand.FeedSources) {
			return CommitResult{}, coded(CodeInvalidIndex,
				fmt.Sprintf("feed source index %d out of range [1, %d]", idx, len(cand.FeedSources)), nil)
		}
	}

	status := cand.Status
	if status == "" {
		status = domain.SubjectUnknown
	}
	subject, created, err := s.gate.FindOrCreateSubject(ctx, domain.Subject{
		Title:         cand.Title,
		AltTitle:      cand.AltTitle,
		Description:   cand.Description,
		CoverURL:      cand.CoverURL,
		OriginURL:     cand.OriginURL,
		Status:        status,
		TotalEpisodes: cand.TotalEpisodes,
	})
	if err != nil {
		return CommitResult{}, fmt.Errorf("persist subject: %w", err)
	}
	res := CommitResult{Subject: subject, SubjectCreated: created}

	seen := map[int]bool{}
	for _, idx := range feedIndices {
		if seen[idx] {
			continue
		}
		seen[idx] = true

		c := cand.FeedSources[idx-1]
		fs, _, err := s.gate.FindOrCreateFeedSource(ctx, domain.FeedSource{
			SubjectID:    subject.ID,
			Name:         c.Name,
			URL:          c.URL,
			Quality:      c.Quality,
			Active:       true,
			AutoDownload: c.AutoDownload,
		})
		if err != nil {
			return res, fmt.Errorf("persist feed source %s: %w", c.URL, err)
		}
		res.FeedSources = append(res.FeedSources, fs)

		if fs.Active && fs.AutoDownload && s.scheduler != nil && s.scheduler.Running() {
			jobID, err := s.scheduler.AddJob(fs.ID, 0, true)
			if err != nil {
				s.logger.Warn().Err(err).Int64("feed_source_id", fs.ID).Msg("failed to schedule committed feed source")
				continue
			}
			res.ScheduledJobs = append(res.ScheduledJobs, jobID)
		}
	}

	s.logger.Info().Int64("subject_id", subject.ID).Bool("created", created).Int("feed_sources", len(res.FeedSources)).Msg("smart add committed")
	return res, nil
}
