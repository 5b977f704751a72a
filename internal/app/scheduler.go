package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/ports"
)

type FeedRunner interface {
	Run(ctx context.Context, feedSourceID int64, autoDownload bool) RunResult
}

type SchedulerOptions struct {
	DefaultInterval  time.Duration
	ReconcileOnStart bool
}

func DefaultSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{
		DefaultInterval:  time.Duration(domain.DefaultIntervalSeconds) * time.Second,
		ReconcileOnStart: true,
	}
}

type scheduledEntry struct {
	job     domain.ScheduledJob
	entryID cron.EntryID
}

// Scheduler garde un job de polling par source. Les jobs ne sont pas persistés :
// au démarrage ils sont reconstruits depuis les sources en auto-download.
type Scheduler struct {
	logger  zerolog.Logger
	runner  FeedRunner
	feeds   ports.FeedSourceRepository
	metrics *Metrics
	now     func() time.Time

	mu              sync.Mutex
	cron            *cron.Cron
	running         bool
	defaultInterval time.Duration
	reconcile       bool
	jobs            map[string]*scheduledEntry
}

func NewScheduler(logger zerolog.Logger, runner FeedRunner, feeds ports.FeedSourceRepository, metrics *Metrics, opts SchedulerOptions) *Scheduler {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = DefaultSchedulerOptions().DefaultInterval
	}
	return &Scheduler{
		logger:          logger,
		runner:          runner,
		feeds:           feeds,
		metrics:         metrics,
		now:             func() time.Time { return time.Now().UTC() },
		defaultInterval: opts.DefaultInterval,
		reconcile:       opts.ReconcileOnStart,
		jobs:            map[string]*scheduledEntry{},
	}
}

func JobID(feedSourceID int64) string {
	return fmt.Sprintf("feed_check_%d", feedSourceID)
}

// Start est idempotent. La réconciliation n'a lieu qu'à la transition vers running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	cl := cronLogger{logger: s.logger}
	// Recover doit être à l'intérieur de SkipIfStillRunning : sinon un panic
	// ne rend jamais le jeton et le job est sauté pour toujours.
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	s.cron.Start()
	s.running = true
	reconcile := s.reconcile
	s.mu.Unlock()

	s.logger.Info().Msg("scheduler started")

	if reconcile {
		if _, err := s.Reconcile(ctx); err != nil {
			// Le scheduler reste démarré : la prochaine réconciliation rattrapera.
			s.logger.Warn().Err(err).Msg("startup reconciliation failed")
		}
	}
	return nil
}

// Stop arrête les déclenchements futurs et vide les jobs. Les runs en cours
// ne sont pas interrompus : le contexte renvoyé se termine quand ils ont fini.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	done := s.cron.Stop()
	s.running = false
	s.jobs = map[string]*scheduledEntry{}
	s.metrics.jobsChanged(0)
	s.logger.Info().Msg("scheduler stopped")
	return done
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reconcile crée un job (intervalle par défaut) pour chaque source active en
// auto-download qui n'en a pas encore. Renvoie le nombre de jobs créés.
func (s *Scheduler) Reconcile(ctx context.Context) (int, error) {
	if !s.Running() {
		return 0, coded(CodeSchedulerNotRunning, "scheduler is not running", nil)
	}
	feeds, err := s.feeds.ListAutoDownload(ctx)
	if err != nil {
		return 0, fmt.Errorf("list auto-download feed sources: %w", err)
	}

	added := 0
	for _, fs := range feeds {
		if s.HasJob(fs.ID) {
			continue
		}
		if _, err := s.AddJob(fs.ID, 0, true); err != nil {
			return added, err
		}
		added++
	}
	s.logger.Info().Int("feeds", len(feeds)).Int("added", added).Msg("scheduler reconciled")
	return added, nil
}

// AddJob crée ou remplace le job de la source. intervalSeconds <= 0 prend l'intervalle par défaut.
func (s *Scheduler) AddJob(feedSourceID int64, intervalSeconds int, autoDownload bool) (string, error) {
	if feedSourceID <= 0 {
		return "", coded(CodeInvalidParams, "feedSourceId is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return "", coded(CodeSchedulerNotRunning, "scheduler is not running", nil)
	}

	interval := time.Duration(intervalSeconds) * time.Second
	if interval <= 0 {
		interval = s.defaultInterval
	}

	id := JobID(feedSourceID)
	if prev, ok := s.jobs[id]; ok && prev.entryID != 0 {
		s.cron.Remove(prev.entryID)
	}

	e := &scheduledEntry{job: domain.ScheduledJob{
		ID:              id,
		FeedSourceID:    feedSourceID,
		IntervalSeconds: int(interval / time.Second),
		AutoDownload:    autoDownload,
		CreatedAt:       s.now(),
	}}
	e.entryID = s.cron.Schedule(cron.Every(interval), s.fireJob(e.job))
	s.jobs[id] = e
	s.metrics.jobsChanged(len(s.jobs))

	s.logger.Info().Str("job_id", id).Int("interval_s", e.job.IntervalSeconds).Bool("auto_download", autoDownload).Msg("job scheduled")
	return id, nil
}

// RemoveJob est best-effort : un job inconnu est seulement loggé.
func (s *Scheduler) RemoveJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok {
		s.logger.Debug().Str("job_id", jobID).Msg("remove: job not found")
		return false
	}
	if e.entryID != 0 {
		s.cron.Remove(e.entryID)
	}
	delete(s.jobs, jobID)
	s.metrics.jobsChanged(len(s.jobs))
	s.logger.Info().Str("job_id", jobID).Msg("job removed")
	return true
}

func (s *Scheduler) PauseJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok {
		return coded(CodeJobNotFound, "job not found: "+jobID, ErrNotFound)
	}
	if e.job.Paused {
		return nil
	}
	s.cron.Remove(e.entryID)
	e.entryID = 0
	e.job.Paused = true
	s.logger.Info().Str("job_id", jobID).Msg("job paused")
	return nil
}

func (s *Scheduler) ResumeJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[jobID]
	if !ok {
		return coded(CodeJobNotFound, "job not found: "+jobID, ErrNotFound)
	}
	if !e.job.Paused {
		return nil
	}
	interval := time.Duration(e.job.IntervalSeconds) * time.Second
	e.entryID = s.cron.Schedule(cron.Every(interval), s.fireJob(e.job))
	e.job.Paused = false
	s.logger.Info().Str("job_id", jobID).Msg("job resumed")
	return nil
}

func (s *Scheduler) HasJob(feedSourceID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[JobID(feedSourceID)]
	return ok
}

// ListJobs renvoie une copie triée par id.
func (s *Scheduler) ListJobs() []domain.ScheduledJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScheduledJob, 0, len(s.jobs))
	for _, e := range s.jobs {
		j := e.job
		if e.entryID != 0 {
			if next := s.cron.Entry(e.entryID).Next; !next.IsZero() {
				next = next.UTC()
				j.NextRun = &next
			}
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// SetDefaultInterval s'applique aux jobs créés ensuite, pas aux jobs existants.
func (s *Scheduler) SetDefaultInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.defaultInterval = d
	s.mu.Unlock()
}

func (s *Scheduler) fireJob(job domain.ScheduledJob) cron.Job {
	return cron.FuncJob(func() {
		// Un run en cours n'est jamais annulé par Stop.
		res := s.runner.Run(context.Background(), job.FeedSourceID, job.AutoDownload)
		s.metrics.fired(res.Outcome())
		ev := s.logger.Debug()
		if res.Err != nil {
			ev = s.logger.Warn().Err(res.Err)
		}
		ev.Str("job_id", job.ID).Str("outcome", res.Outcome()).Int("new_items", res.NewItemCount).Msg("job fired")
	})
}

// cronLogger branche les logs de robfig/cron sur zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
