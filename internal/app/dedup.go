package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

// DedupGate est le seul chemin d'insertion des Subject, FeedSource et Item.
// Chaque identité a sa contrainte d'unicité en base ; en cas de course
// (ErrConflict), on relit la ligne créée par l'autre appelant.
type DedupGate struct {
	subjects ports.SubjectRepository
	feeds    ports.FeedSourceRepository
	items    ports.ItemRepository
}

func NewDedupGate(subjects ports.SubjectRepository, feeds ports.FeedSourceRepository, items ports.ItemRepository) *DedupGate {
	return &DedupGate{subjects: subjects, feeds: feeds, items: items}
}

// FindOrCreateSubject dédoublonne par OriginURL. Sans OriginURL, le sujet est toujours créé.
func (g *DedupGate) FindOrCreateSubject(ctx context.Context, s domain.Subject) (domain.Subject, bool, error) {
	s.OriginURL = strings.TrimSpace(s.OriginURL)
	if s.OriginURL == "" {
		created, err := g.subjects.Insert(ctx, s)
		return created, err == nil, err
	}
	lookup := func() (domain.Subject, error) { return g.subjects.GetByOriginURL(ctx, s.OriginURL) }
	insert := func() (domain.Subject, error) { return g.subjects.Insert(ctx, s) }
	return findOrCreate(lookup, insert, "subject "+s.OriginURL)
}

// FindOrCreateFeedSource dédoublonne par (SubjectID, URL).
func (g *DedupGate) FindOrCreateFeedSource(ctx context.Context, fs domain.FeedSource) (domain.FeedSource, bool, error) {
	fs.URL = strings.TrimSpace(fs.URL)
	lookup := func() (domain.FeedSource, error) { return g.feeds.GetByOwnerAndURL(ctx, fs.SubjectID, fs.URL) }
	insert := func() (domain.FeedSource, error) { return g.feeds.Insert(ctx, fs) }
	return findOrCreate(lookup, insert, fmt.Sprintf("feed source %d/%s", fs.SubjectID, fs.URL))
}

// FindOrCreateItem dédoublonne par (FeedSourceID, URL).
func (g *DedupGate) FindOrCreateItem(ctx context.Context, it domain.Item) (domain.Item, bool, error) {
	lookup := func() (domain.Item, error) { return g.items.GetByFeedSourceAndURL(ctx, it.FeedSourceID, it.URL) }
	insert := func() (domain.Item, error) { return g.items.Insert(ctx, it) }
	return findOrCreate(lookup, insert, fmt.Sprintf("item %d/%s", it.FeedSourceID, it.URL))
}

func findOrCreate[T any](lookup, insert func() (T, error), what string) (T, bool, error) {
	var zero T
	existing, err := lookup()
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return zero, false, err
	}

	created, err := insert()
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ports.ErrConflict) {
		return zero, false, err
	}

	// Un autre appelant a inséré entre-temps : relire.
	existing, lerr := lookup()
	if lerr == nil {
		return existing, false, nil
	}
	return zero, false, fmt.Errorf("%s: insert conflict not resolved by re-query: %w", what, err)
}
