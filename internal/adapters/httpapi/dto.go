package httpapi

import (
	"time"

	"github.com/insomniacdoll/animeloader/internal/app"
	"github.com/insomniacdoll/animeloader/internal/domain"
)

type SubjectDTO struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	AltTitle      string    `json:"altTitle,omitempty"`
	Description   string    `json:"description,omitempty"`
	CoverURL      string    `json:"coverUrl,omitempty"`
	OriginURL     string    `json:"originUrl,omitempty"`
	Status        string    `json:"status"`
	TotalEpisodes int       `json:"totalEpisodes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type FeedSourceDTO struct {
	ID           int64      `json:"id"`
	SubjectID    int64      `json:"subjectId"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Quality      string     `json:"quality,omitempty"`
	Active       bool       `json:"active"`
	AutoDownload bool       `json:"autoDownload"`
	LastChecked  *time.Time `json:"lastChecked,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type ItemDTO struct {
	ID           int64      `json:"id"`
	FeedSourceID int64      `json:"feedSourceId"`
	Episode      *int       `json:"episode,omitempty"`
	EpisodeTitle string     `json:"episodeTitle"`
	LinkType     string     `json:"linkType"`
	URL          string     `json:"url"`
	SourceURL    string     `json:"sourceUrl,omitempty"`
	Size         *int64     `json:"size,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	Downloaded   bool       `json:"downloaded"`
	Available    bool       `json:"available"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type RunResultDTO struct {
	FeedSourceID int64     `json:"feedSourceId"`
	Success      bool      `json:"success"`
	Skipped      bool      `json:"skipped,omitempty"`
	NewItemCount int       `json:"newItemCount"`
	NewItems     []ItemDTO `json:"newItems"`
}

type CommitResultDTO struct {
	Subject        SubjectDTO      `json:"subject"`
	SubjectCreated bool            `json:"subjectCreated"`
	FeedSources    []FeedSourceDTO `json:"feedSources"`
	ScheduledJobs  []string        `json:"scheduledJobs"`
}

func toSubjectDTO(s domain.Subject) SubjectDTO {
	return SubjectDTO{
		ID:            s.ID,
		Title:         s.Title,
		AltTitle:      s.AltTitle,
		Description:   s.Description,
		CoverURL:      s.CoverURL,
		OriginURL:     s.OriginURL,
		Status:        string(s.Status),
		TotalEpisodes: s.TotalEpisodes,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func toFeedSourceDTO(f domain.FeedSource) FeedSourceDTO {
	return FeedSourceDTO{
		ID:           f.ID,
		SubjectID:    f.SubjectID,
		Name:         f.Name,
		URL:          f.URL,
		Quality:      f.Quality,
		Active:       f.Active,
		AutoDownload: f.AutoDownload,
		LastChecked:  f.LastChecked,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func toItemDTO(it domain.Item) ItemDTO {
	return ItemDTO{
		ID:           it.ID,
		FeedSourceID: it.FeedSourceID,
		Episode:      it.Episode,
		EpisodeTitle: it.EpisodeTitle,
		LinkType:     string(it.LinkType),
		URL:          it.URL,
		SourceURL:    it.SourceURL,
		Size:         it.Size,
		PublishedAt:  it.PublishedAt,
		Downloaded:   it.Downloaded,
		Available:    it.Available,
		CreatedAt:    it.CreatedAt,
	}
}

func toItemDTOs(items []domain.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, toItemDTO(it))
	}
	return out
}

func toRunResultDTO(res app.RunResult) RunResultDTO {
	return RunResultDTO{
		FeedSourceID: res.FeedSourceID,
		Success:      res.Success,
		Skipped:      res.Skipped,
		NewItemCount: res.NewItemCount,
		NewItems:     toItemDTOs(res.NewItems),
	}
}

func toCommitResultDTO(res app.CommitResult) CommitResultDTO {
	out := CommitResultDTO{
		Subject:        toSubjectDTO(res.Subject),
		SubjectCreated: res.SubjectCreated,
		FeedSources:    make([]FeedSourceDTO, 0, len(res.FeedSources)),
		ScheduledJobs:  res.ScheduledJobs,
	}
	if out.ScheduledJobs == nil {
		out.ScheduledJobs = []string{}
	}
	for _, fs := range res.FeedSources {
		out.FeedSources = append(out.FeedSources, toFeedSourceDTO(fs))
	}
	return out
}
