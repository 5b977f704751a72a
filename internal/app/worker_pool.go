package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
)

// WorkerPool fait tourner MaxWorkers workers, redimensionnable à chaud depuis
// PUT /settings. Un worker retiré arrête de réclamer des tâches mais termine
// celle qu'il suit ; Close interrompt tout et attend.
type WorkerPool struct {
	base   context.Context
	stop   context.CancelFunc
	logger zerolog.Logger
	deps   WorkerDeps
	opts   WorkerOptions

	mu    sync.Mutex
	slots []context.CancelFunc
	next  int
	wg    sync.WaitGroup
}

func NewWorkerPool(parent context.Context, logger zerolog.Logger, deps WorkerDeps, opts WorkerOptions) *WorkerPool {
	if parent == nil {
		parent = context.Background()
	}
	base, stop := context.WithCancel(parent)
	return &WorkerPool{base: base, stop: stop, logger: logger, deps: deps, opts: opts}
}

func (p *WorkerPool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}

func (p *WorkerPool) SetCount(n int) {
	n = max(n, 1)

	p.mu.Lock()
	for len(p.slots) < n {
		p.slots = append(p.slots, p.spawnLocked())
	}
	var removed []context.CancelFunc
	if len(p.slots) > n {
		removed = append(removed, p.slots[n:]...)
		p.slots = p.slots[:n]
	}
	p.mu.Unlock()

	for _, cancel := range removed {
		cancel()
	}
	p.deps.Metrics.workersChanged(n)
	p.logger.Info().Int("workers", n).Int("stopped", len(removed)).Msg("worker pool resized")
}

func (p *WorkerPool) spawnLocked() context.CancelFunc {
	p.next++
	stop, cancel := context.WithCancel(p.base)
	w := NewWorker(p.logger.With().Int("worker", p.next).Logger(), p.deps, p.opts)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run(stop, p.base)
	}()
	return cancel
}

// Recover traite les tâches restées "downloading" après un arrêt : sans
// ExternalID elles n'ont jamais atteint le backend et repartent en file,
// sinon leur suivi reprend en tâche de fond.
func (p *WorkerPool) Recover(ctx context.Context) (requeued, resumed int, err error) {
	tasks, err := p.deps.Tasks.ListByStatus(ctx, domain.TaskDownloading)
	if err != nil {
		return 0, 0, fmt.Errorf("list downloading tasks: %w", err)
	}
	for _, task := range tasks {
		if task.ExternalID == "" {
			queued, err := p.deps.Tasks.UpdateStatus(ctx, task.ID, domain.TaskDownloading, domain.TaskQueued)
			if err != nil {
				p.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("failed to requeue stale task")
				continue
			}
			PublishTaskEvent(p.deps.Bus, "task.queued", queued)
			requeued++
			continue
		}

		w := NewWorker(p.logger.With().Str("worker", "recovery").Logger(), p.deps, p.opts)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Resume(p.base, task)
		}()
		resumed++
	}
	if requeued+resumed > 0 {
		p.logger.Info().Int("requeued", requeued).Int("resumed", resumed).Msg("stale tasks recovered")
	}
	return requeued, resumed, nil
}

// Close arrête tous les workers et suivis en cours, puis attend leur sortie.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.slots = nil
	p.mu.Unlock()

	p.stop()
	p.wg.Wait()
	p.deps.Metrics.workersChanged(0)
}
