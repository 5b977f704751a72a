package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestFeedSourceService_SetAutoDownloadSyncsScheduler(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fs := env.seedFeed(t, feedURL, true, false)
	sched := newTestScheduler(t, env, &countingRunner{})
	require.NoError(t, sched.Start(ctx))
	svc := NewFeedSourceService(zerolog.Nop(), env.subjects, env.feeds, env.items, &countingRunner{}, sched)

	updated, err := svc.SetAutoDownload(ctx, fs.ID, true)
	require.NoError(t, err)
	require.True(t, updated.AutoDownload)
	require.True(t, sched.HasJob(fs.ID))

	updated, err = svc.SetAutoDownload(ctx, fs.ID, false)
	require.NoError(t, err)
	require.False(t, updated.AutoDownload)
	require.False(t, sched.HasJob(fs.ID))

	_, err = svc.SetAutoDownload(ctx, 9999, true)
	require.Equal(t, CodeFeedSourceNotFound, ErrorCode(err))
}

func TestFeedSourceService_CheckReportsStage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fs := env.seedFeed(t, feedURL, true, false)
	torrent, _ := syntheticTorrent(t, "Golden Kamuy - 01.mkv")
	p := newTestPipeline(env, threeEntryFeed(), mapGetter{torrentURL: torrent}, nil, nil)
	svc := NewFeedSourceService(zerolog.Nop(), env.subjects, env.feeds, env.items, p, nil)

	res, err := svc.Check(ctx, fs.ID, false)
	require.NoError(t, err)
	require.Equal(t, 2, res.NewItemCount)

	items, err := svc.ListItems(ctx, fs.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = svc.Check(ctx, 9999, false)
	require.Equal(t, CodeFeedSourceNotFound, ErrorCode(err))

	_, err = svc.Get(ctx, 9999)
	require.Equal(t, CodeFeedSourceNotFound, ErrorCode(err))
}
