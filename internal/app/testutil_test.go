package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/adapters/sqlite"
	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/sources"
)

type testEnv struct {
	db          *sqlite.DB
	subjects    *sqlite.SubjectsRepository
	feeds       *sqlite.FeedSourcesRepository
	items       *sqlite.ItemsRepository
	tasks       *sqlite.TasksRepository
	downloaders *sqlite.DownloadersRepository
	settings    *sqlite.SettingsRepository
	gate        *DedupGate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		db:          db,
		subjects:    sqlite.NewSubjectsRepository(db.SQL),
		feeds:       sqlite.NewFeedSourcesRepository(db.SQL),
		items:       sqlite.NewItemsRepository(db.SQL),
		tasks:       sqlite.NewTasksRepository(db.SQL),
		downloaders: sqlite.NewDownloadersRepository(db.SQL),
		settings:    sqlite.NewSettingsRepository(db.SQL),
	}
	env.gate = NewDedupGate(env.subjects, env.feeds, env.items)
	return env
}

func (e *testEnv) seedFeed(t *testing.T, url string, active, autoDownload bool) domain.FeedSource {
	t.Helper()
	ctx := context.Background()
	subject, _, err := e.gate.FindOrCreateSubject(ctx, domain.Subject{Title: "Golden Kamuy", Status: domain.SubjectOngoing})
	require.NoError(t, err)
	fs, created, err := e.gate.FindOrCreateFeedSource(ctx, domain.FeedSource{
		SubjectID:    subject.ID,
		Name:         "蜜柑计划 1080p",
		URL:          url,
		Quality:      "1080p",
		Active:       active,
		AutoDownload: autoDownload,
	})
	require.NoError(t, err)
	require.True(t, created)
	return fs
}

func syntheticTorrent(t *testing.T, name string) (torrent []byte, magnet string) {
	t.Helper()
	info := map[string]any{
		"name":         name,
		"piece length": int64(262144),
		"pieces":       strings.Repeat("\x02", 20),
		"length":       int64(4096),
	}
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)
	sum := sha1.Sum(infoBytes)

	torrent, err = bencode.Marshal(map[string]any{"announce": "http://tracker.test/announce", "info": info})
	require.NoError(t, err)
	return torrent, "magnet:?xt=urn:btih:" + hex.EncodeToString(sum[:])
}

type mapGetter map[string][]byte

func (m mapGetter) Get(_ context.Context, url string) ([]byte, error) {
	b, ok := m[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return b, nil
}

// stubParser sert des entrées fixes pour toute URL https://feeds.test/.
type stubParser struct {
	items       []sources.RawItem
	failure     sources.FailureKind
	ignoreKnown bool

	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (p *stubParser) Name() string { return "stub" }

func (p *stubParser) CanParse(url string) bool { return strings.HasPrefix(url, "https://feeds.test/") }

func (p *stubParser) ParseFeed(_ context.Context, _ string, known map[string]struct{}) sources.FeedResult {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.started != nil {
		p.started <- struct{}{}
	}
	if p.release != nil {
		<-p.release
	}
	if p.failure != sources.FailureNone {
		return sources.FeedResult{Failure: p.failure, Err: errors.New("feed failure")}
	}

	res := sources.FeedResult{OK: true, Title: "stub", Items: p.items}
	for _, it := range p.items {
		seen := false
		for _, l := range it.Links {
			if _, ok := known[l.URL]; ok {
				seen = true
			}
		}
		if p.ignoreKnown || !seen {
			res.NewItems = append(res.NewItems, it)
		}
	}
	return res
}

func (p *stubParser) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func registryWith(p sources.FeedParser) *sources.Registry {
	r := sources.NewRegistry()
	r.RegisterFeedParser(p)
	return r
}

type recordingTrigger struct {
	mu    sync.Mutex
	items []int64
	err   error
}

func (r *recordingTrigger) OnNewItem(_ context.Context, item domain.Item) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item.ID)
	return 0, r.err
}

func (r *recordingTrigger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func intPtr(v int) *int { return &v }
