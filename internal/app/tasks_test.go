package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/insomniacdoll/animeloader/internal/adapters/memorybus"
	"github.com/insomniacdoll/animeloader/internal/domain"
)

func seedItemAndDownloader(t *testing.T, env *testEnv) (domain.Item, domain.Downloader) {
	t.Helper()
	ctx := context.Background()
	fs := env.seedFeed(t, feedURL, true, true)
	item, _, err := env.gate.FindOrCreateItem(ctx, domain.Item{FeedSourceID: fs.ID, LinkType: domain.LinkMagnet, URL: knownMagnet, Available: true})
	require.NoError(t, err)
	dl, err := env.downloaders.Insert(ctx, domain.Downloader{Name: "mock", Type: domain.DownloaderMock, Enabled: true, IsDefault: true, Config: "{}"})
	require.NoError(t, err)
	return item, dl
}

func TestTaskService_CreateAndStart(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	item, dl := seedItemAndDownloader(t, env)
	svc := NewTaskService(env.tasks, env.downloaders, env.items, nil)

	got, err := svc.DefaultDownloader(ctx)
	require.NoError(t, err)
	require.Equal(t, dl.ID, got.ID)

	id, err := svc.CreateTask(ctx, item.ID, dl.ID)
	require.NoError(t, err)
	task, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TaskPending, task.Status)

	require.NoError(t, svc.StartTask(ctx, id))
	task, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TaskQueued, task.Status)

	// Déjà démarrée : pending → queued n'est plus possible.
	require.Error(t, svc.StartTask(ctx, id))

	_, err = svc.CreateTask(ctx, 9999, dl.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskService_CancelAndInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	item, dl := seedItemAndDownloader(t, env)
	svc := NewTaskService(env.tasks, env.downloaders, env.items, nil)

	id, err := svc.CreateTask(ctx, item.ID, dl.ID)
	require.NoError(t, err)

	_, err = svc.Pause(ctx, id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	cancelled, err := svc.Cancel(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.TaskCancelled, cancelled.Status)

	_, err = svc.Resume(ctx, id)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorkerPool_RunsTaskToCompletionAndMarksItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)
	item, dl := seedItemAndDownloader(t, env)
	bus := memorybus.New()

	backend := NewMockBackend(0.5)
	backends := NewBackendRegistry()
	backends.Register(domain.DownloaderMock, func(domain.Downloader) (Backend, error) { return backend, nil })

	updater := NewDownloadCompletionUpdater(zerolog.Nop(), bus, env.items)
	go updater.Run(ctx)

	pool := NewWorkerPool(ctx, zerolog.Nop(), WorkerDeps{
		Tasks:       env.tasks,
		Items:       env.items,
		Downloaders: env.downloaders,
		Backends:    backends,
		Bus:         bus,
	}, WorkerOptions{PollInterval: 10 * time.Millisecond, ProgressInterval: 10 * time.Millisecond, DownloadLimiter: NewDynamicLimiter(1)})
	pool.SetCount(2)
	defer pool.Close()
	require.Equal(t, 2, pool.Count())

	// Laisse le temps à l'updater de s'abonner avant la fin de la tâche.
	time.Sleep(20 * time.Millisecond)

	svc := NewTaskService(env.tasks, env.downloaders, env.items, bus)
	trigger := NewDownloadTrigger(zerolog.Nop(), svc, nil)
	taskID, err := trigger.OnNewItem(ctx, item)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, err := svc.Get(ctx, taskID)
		return err == nil && task.Status == domain.TaskCompleted
	}, 5*time.Second, 20*time.Millisecond)

	task, err := svc.Get(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, 1.0, task.Progress)
	require.Equal(t, "0123456789abcdef0123456789abcdef01234567", task.ExternalID)
	require.Equal(t, dl.ID, task.DownloaderID)

	require.Eventually(t, func() bool {
		it, err := env.items.Get(ctx, item.ID)
		return err == nil && it.Downloaded
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWorker_FailsWithoutBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env := newTestEnv(t)
	item, dl := seedItemAndDownloader(t, env)

	svc := NewTaskService(env.tasks, env.downloaders, env.items, nil)
	id, err := svc.CreateTask(ctx, item.ID, dl.ID)
	require.NoError(t, err)
	require.NoError(t, svc.StartTask(ctx, id))

	w := NewWorker(zerolog.Nop(), WorkerDeps{
		Tasks:       env.tasks,
		Items:       env.items,
		Downloaders: env.downloaders,
		Backends:    NewBackendRegistry(),
	}, WorkerOptions{PollInterval: 10 * time.Millisecond})
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		task, err := svc.Get(ctx, id)
		return err == nil && task.Status == domain.TaskFailed && task.ErrorCode == CodeNoBackend
	}, 5*time.Second, 20*time.Millisecond)
}

func TestMockBackend_PauseHoldsProgress(t *testing.T) {
	ctx := context.Background()
	b := NewMockBackend(0.5)
	id, err := b.Add(ctx, knownMagnet)
	require.NoError(t, err)

	p, err := b.Progress(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0.5, p)

	require.NoError(t, b.Pause(ctx, id))
	p, _ = b.Progress(ctx, id)
	require.Equal(t, 0.5, p)

	require.NoError(t, b.Resume(ctx, id))
	p, _ = b.Progress(ctx, id)
	require.Equal(t, 1.0, p)

	require.NoError(t, b.Remove(ctx, id))
	_, err = b.Progress(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
}
