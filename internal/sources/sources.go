// Package sources regroupe les parsers de flux RSS et les scrapers de pages
// catalogue, sélectionnés par URL via un Registry ordonné.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

var ErrNoParser = errors.New("no parser for url")

type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureUnreachable FailureKind = "unreachable"
	FailureUnparsable  FailureKind = "unparsable"
)

type RawLink struct {
	URL  string
	Type domain.LinkType
}

// RawItem est une entrée de flux avant normalisation.
type RawItem struct {
	Title        string
	EpisodeTitle string
	Episode      *int
	Links        []RawLink
	Size         *int64
	PublishedAt  *time.Time
	Metadata     string
}

func (it RawItem) PrimaryURL() string {
	if len(it.Links) == 0 {
		return ""
	}
	return it.Links[0].URL
}

// FeedResult : OK=false signale un échec structurel (flux injoignable ou illisible).
// Un flux valide sans entrée est OK avec zéro item.
type FeedResult struct {
	OK          bool
	Failure     FailureKind
	Err         error
	Title       string
	Description string
	Items       []RawItem
	NewItems    []RawItem
}

func failed(kind FailureKind, err error) FeedResult {
	return FeedResult{Failure: kind, Err: err}
}

type FeedParser interface {
	Name() string
	CanParse(url string) bool
	// ParseFeed ne renvoie jamais d'erreur Go : les échecs sont dans FeedResult.
	// known est un pré-filtre ; la déduplication en base reste l'autorité.
	ParseFeed(ctx context.Context, url string, known map[string]struct{}) FeedResult
}

type CandidateFeedSource struct {
	Name         string `json:"name"`
	URL          string `json:"url"`
	Quality      string `json:"quality"`
	AutoDownload bool   `json:"autoDownload"`
}

type CandidateSubject struct {
	Title         string                `json:"title"`
	AltTitle      string                `json:"altTitle,omitempty"`
	Description   string                `json:"description,omitempty"`
	CoverURL      string                `json:"coverUrl,omitempty"`
	OriginURL     string                `json:"originUrl,omitempty"`
	Status        domain.SubjectStatus  `json:"status"`
	TotalEpisodes int                   `json:"totalEpisodes"`
	FeedSources   []CandidateFeedSource `json:"feedSources"`
}

type ScrapeResult struct {
	SiteName   string             `json:"siteName"`
	Candidates []CandidateSubject `json:"candidates"`
}

type SiteScraper interface {
	Name() string
	CanParse(url string) bool
	Scrape(ctx context.Context, url string) (ScrapeResult, error)
}

// filterNew garde les items dont aucun lien n'est déjà connu.
func filterNew(items []RawItem, known map[string]struct{}) []RawItem {
	out := make([]RawItem, 0, len(items))
	for _, it := range items {
		seen := false
		for _, l := range it.Links {
			if _, ok := known[l.URL]; ok {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, it)
		}
	}
	return out
}
