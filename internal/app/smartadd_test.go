package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/sources"
)

const catalogURL = "https://catalog.test/Home/Bangumi/3310"

type stubScraper struct {
	result sources.ScrapeResult
	err    error

	mu    sync.Mutex
	calls int
}

func (s *stubScraper) Name() string { return "catalog" }

func (s *stubScraper) CanParse(url string) bool { return strings.HasPrefix(url, "https://catalog.test/") }

func (s *stubScraper) Scrape(_ context.Context, _ string) (sources.ScrapeResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.result, s.err
}

func goldenKamuyPage() sources.ScrapeResult {
	return sources.ScrapeResult{
		SiteName: "蜜柑计划",
		Candidates: []sources.CandidateSubject{{
			Title:     "黄金神威 最终章",
			OriginURL: catalogURL,
			FeedSources: []sources.CandidateFeedSource{
				{Name: "蜜柑计划 LoliHouse", URL: "https://feeds.test/RSS/Bangumi?bangumiId=3310&subgroupid=370", Quality: "1080p", AutoDownload: true},
				{Name: "蜜柑计划 ANi", URL: "https://feeds.test/RSS/Bangumi?bangumiId=3310&subgroupid=583", Quality: "720p", AutoDownload: false},
			},
		}},
	}
}

func newTestSmartAdd(env *testEnv, scraper sources.SiteScraper, sched JobScheduler) *SmartAdd {
	reg := sources.NewRegistry()
	reg.RegisterSiteScraper(scraper)
	return NewSmartAdd(zerolog.Nop(), reg, env.gate, sched)
}

func TestSmartAdd_Discover(t *testing.T) {
	env := newTestEnv(t)
	sa := newTestSmartAdd(env, &stubScraper{result: goldenKamuyPage()}, nil)

	res, err := sa.Discover(context.Background(), catalogURL)
	require.NoError(t, err)
	require.Equal(t, "蜜柑计划", res.SiteName)
	require.Len(t, res.Candidates, 1)
	require.Len(t, res.Candidates[0].FeedSources, 2)

	_, err = sa.Discover(context.Background(), "https://unknown.test/page")
	require.Equal(t, CodeNoScraper, ErrorCode(err))

	failing := newTestSmartAdd(env, &stubScraper{err: errors.New("timeout")}, nil)
	_, err = failing.Discover(context.Background(), catalogURL)
	require.Equal(t, CodeScrapeFailed, ErrorCode(err))
}

func TestSmartAdd_CommitIsIdempotentAndRescrapes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	scraper := &stubScraper{result: goldenKamuyPage()}
	sa := newTestSmartAdd(env, scraper, nil)

	first, err := sa.Commit(ctx, catalogURL, 1, []int{1, 2})
	require.NoError(t, err)
	require.True(t, first.SubjectCreated)
	require.Len(t, first.FeedSources, 2)
	require.True(t, first.FeedSources[0].AutoDownload)
	require.False(t, first.FeedSources[1].AutoDownload)

	second, err := sa.Commit(ctx, catalogURL, 1, []int{2, 2})
	require.NoError(t, err)
	require.False(t, second.SubjectCreated)
	require.Equal(t, first.Subject.ID, second.Subject.ID)
	require.Len(t, second.FeedSources, 1)
	require.Equal(t, first.FeedSources[1].ID, second.FeedSources[0].ID)
	require.Equal(t, 2, scraper.calls)

	subjects, err := env.subjects.List(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	feeds, err := env.feeds.ListByOwner(ctx, first.Subject.ID)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
}

func TestSmartAdd_CommitValidatesIndices(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	page := goldenKamuyPage()
	twoSubjects := page
	twoSubjects.Candidates = append(append([]sources.CandidateSubject(nil), page.Candidates...), sources.CandidateSubject{Title: "other", OriginURL: catalogURL + "?other"})

	cases := []struct {
		name    string
		page    sources.ScrapeResult
		subject int
		feeds   []int
	}{
		{"subject zero with several candidates", twoSubjects, 0, nil},
		{"subject too large", page, 2, nil},
		{"negative subject", page, -1, nil},
		{"feed zero", page, 1, []int{0}},
		{"feed too large", page, 1, []int{1, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sa := newTestSmartAdd(env, &stubScraper{result: tc.page}, nil)
			_, err := sa.Commit(ctx, catalogURL, tc.subject, tc.feeds)
			require.Equal(t, CodeInvalidIndex, ErrorCode(err))
		})
	}

	subjects, err := env.subjects.List(ctx)
	require.NoError(t, err)
	require.Empty(t, subjects, "invalid commits must not persist anything")

	sa := newTestSmartAdd(env, &stubScraper{result: sources.ScrapeResult{SiteName: "x"}}, nil)
	_, err = sa.Commit(ctx, catalogURL, 1, nil)
	require.Equal(t, CodeNoCandidates, ErrorCode(err))
}

func TestSmartAdd_CommitSchedulesAutoDownloadFeeds(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	sched := newTestScheduler(t, env, &countingRunner{})
	sa := newTestSmartAdd(env, &stubScraper{result: goldenKamuyPage()}, sched)

	// Scheduler arrêté : rien n'est planifié, le commit réussit quand même.
	res, err := sa.Commit(ctx, catalogURL, 0, []int{1})
	require.NoError(t, err)
	require.Empty(t, res.ScheduledJobs)

	require.NoError(t, sched.Start(ctx))
	require.Len(t, sched.ListJobs(), 1, "reconciliation picks up the committed feed")

	res, err = sa.Commit(ctx, catalogURL, 1, []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, []string{JobID(res.FeedSources[0].ID)}, res.ScheduledJobs)
	require.Len(t, sched.ListJobs(), 1)
}
