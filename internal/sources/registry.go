package sources

import (
	"fmt"
	"sync"

	"github.com/insomniacdoll/animeloader/internal/fetch"
)

// Registry : le premier parser dont CanParse répond true gagne,
// les implémentations spécifiques doivent donc précéder les génériques.
type Registry struct {
	mu       sync.RWMutex
	feeds    []FeedParser
	scrapers []SiteScraper
}

func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry enregistre Mikan puis le parser RSS/Atom générique.
func DefaultRegistry(getter fetch.Getter) *Registry {
	r := NewRegistry()
	r.RegisterFeedParser(NewMikanFeedParser(getter))
	r.RegisterFeedParser(NewGenericFeedParser(getter))
	r.RegisterSiteScraper(NewMikanScraper(getter))
	return r
}

func (r *Registry) RegisterFeedParser(p FeedParser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, p)
}

func (r *Registry) RegisterSiteScraper(s SiteScraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers = append(r.scrapers, s)
}

func (r *Registry) FeedParserFor(url string) (FeedParser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.feeds {
		if p.CanParse(url) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoParser, url)
}

func (r *Registry) SiteScraperFor(url string) (SiteScraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scrapers {
		if s.CanParse(url) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoParser, url)
}
