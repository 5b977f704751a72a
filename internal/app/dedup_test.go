package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

func TestDedupGate_SubjectByOriginURL(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a, created, err := env.gate.FindOrCreateSubject(ctx, domain.Subject{Title: "A", OriginURL: " https://catalog.test/1 "})
	require.NoError(t, err)
	require.True(t, created)
	b, created, err := env.gate.FindOrCreateSubject(ctx, domain.Subject{Title: "B", OriginURL: "https://catalog.test/1"})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, a.ID, b.ID)

	// Sans origine, pas de déduplication.
	c, created, err := env.gate.FindOrCreateSubject(ctx, domain.Subject{Title: "A"})
	require.NoError(t, err)
	require.True(t, created)
	d, created, err := env.gate.FindOrCreateSubject(ctx, domain.Subject{Title: "A"})
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, c.ID, d.ID)
}

func TestDedupGate_ScopesAreNotCollapsed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fs1 := env.seedFeed(t, "https://feeds.test/a", true, false)
	fs2 := env.seedFeed(t, "https://feeds.test/a", true, false)
	require.NotEqual(t, fs1.SubjectID, fs2.SubjectID)
	require.NotEqual(t, fs1.ID, fs2.ID)

	_, created, err := env.gate.FindOrCreateItem(ctx, domain.Item{FeedSourceID: fs1.ID, LinkType: domain.LinkMagnet, URL: knownMagnet})
	require.NoError(t, err)
	require.True(t, created)
	_, created, err = env.gate.FindOrCreateItem(ctx, domain.Item{FeedSourceID: fs2.ID, LinkType: domain.LinkMagnet, URL: knownMagnet})
	require.NoError(t, err)
	require.True(t, created, "same release under another feed source is a distinct item")
}

func TestDedupGate_ConcurrentItemInsert(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fs := env.seedFeed(t, "https://feeds.test/a", true, false)

	var createdCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := env.gate.FindOrCreateItem(ctx, domain.Item{FeedSourceID: fs.ID, LinkType: domain.LinkMagnet, URL: knownMagnet})
			require.NoError(t, err)
			if created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), createdCount.Load())

	items, err := env.items.ListByFeedSource(ctx, fs.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestFindOrCreate_ConflictFallsBackToLookup(t *testing.T) {
	lookups := 0
	lookup := func() (string, error) {
		lookups++
		if lookups == 1 {
			return "", ports.ErrNotFound
		}
		return "winner", nil
	}
	insert := func() (string, error) { return "", ports.ErrConflict }

	got, created, err := findOrCreate(lookup, insert, "x")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "winner", got)
}

func TestFindOrCreate_UnresolvedConflictPropagates(t *testing.T) {
	lookup := func() (string, error) { return "", ports.ErrNotFound }
	insert := func() (string, error) { return "", ports.ErrConflict }

	_, _, err := findOrCreate(lookup, insert, "x")
	require.ErrorIs(t, err, ports.ErrConflict)

	boom := errors.New("disk full")
	_, _, err = findOrCreate(lookup, func() (string, error) { return "", boom }, "x")
	require.ErrorIs(t, err, boom)
}
