package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/fetch"
)

const (
	mikanBaseURL  = "https://mikanani.me"
	mikanSiteName = "蜜柑计划"
)

var reStyleURL = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)

// MikanScraper extrait un sujet et ses flux RSS d'une page bangumi de mikanani.me.
type MikanScraper struct {
	getter fetch.Getter
}

func NewMikanScraper(getter fetch.Getter) *MikanScraper {
	return &MikanScraper{getter: getter}
}

func (s *MikanScraper) Name() string { return mikanSiteName }

func (s *MikanScraper) CanParse(url string) bool {
	return hostMatches(url, "mikanani.me", "mikanani.org")
}

func (s *MikanScraper) Scrape(ctx context.Context, pageURL string) (ScrapeResult, error) {
	b, err := s.getter.Get(ctx, pageURL)
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	cand := CandidateSubject{
		Title:       firstText(doc, "h3.bangumi-title", "p.bangumi-title"),
		AltTitle:    firstText(doc, "p.bangumi-info"),
		Description: firstText(doc, "div.bangumi-description", "p.header2-desc"),
		CoverURL:    coverURL(doc),
		OriginURL:   strings.TrimSpace(pageURL),
		Status:      domain.SubjectOngoing,
		FeedSources: []CandidateFeedSource{},
	}
	if cand.Title == "" {
		return ScrapeResult{}, fmt.Errorf("parse %s: no bangumi title found", pageURL)
	}

	seen := map[string]struct{}{}
	doc.Find("a.mikan-rss").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		feedURL := absoluteMikanURL(href)
		if _, dup := seen[feedURL]; dup {
			return
		}
		seen[feedURL] = struct{}{}

		quality := strings.TrimSpace(a.Text())
		if quality == "" {
			quality = strings.TrimSpace(a.AttrOr("title", ""))
		}
		name := mikanSiteName
		if quality != "" {
			name += " " + quality
		}
		cand.FeedSources = append(cand.FeedSources, CandidateFeedSource{
			Name:         name,
			URL:          feedURL,
			Quality:      quality,
			AutoDownload: true,
		})
	})

	return ScrapeResult{SiteName: mikanSiteName, Candidates: []CandidateSubject{cand}}, nil
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func coverURL(doc *goquery.Document) string {
	if src, ok := doc.Find("img.bangumi-cover").First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return absoluteMikanURL(src)
	}
	// Mise en page actuelle : image de fond du poster.
	style := doc.Find("div.bangumi-poster").First().AttrOr("style", "")
	if m := reStyleURL.FindStringSubmatch(style); m != nil {
		return absoluteMikanURL(m[1])
	}
	return ""
}

func absoluteMikanURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, _ := url.Parse(mikanBaseURL)
	u, err := base.Parse(ref)
	if err != nil {
		return mikanBaseURL + ref
	}
	return u.String()
}
