package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/insomniacdoll/animeloader/internal/domain"
	"github.com/insomniacdoll/animeloader/internal/linktype"
	"github.com/insomniacdoll/animeloader/internal/ports"
	"github.com/insomniacdoll/animeloader/internal/sources"
)

type FeedParserResolver interface {
	FeedParserFor(url string) (sources.FeedParser, error)
}

type LinkNormalizer interface {
	Normalize(ctx context.Context, raw string, declared domain.LinkType) (string, domain.LinkType, error)
}

type ItemTrigger interface {
	OnNewItem(ctx context.Context, item domain.Item) (int64, error)
}

type PipelineOptions struct {
	// NormalizeConcurrency borne les conversions torrent→magnet simultanées d'un run.
	NormalizeConcurrency int
}

func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{NormalizeConcurrency: 4}
}

type RunResult struct {
	FeedSourceID int64
	Success      bool
	Skipped      bool
	NewItemCount int
	NewItems     []domain.Item
	Err          error
}

// Outcome résume le run pour les logs et métriques : success, skipped, ou le code d'erreur.
func (r RunResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Success:
		return "success"
	}
	if code := ErrorCode(r.Err); code != "" {
		return code
	}
	return "error"
}

// Pipeline exécute un cycle de polling pour une source : fetch, parse,
// normalisation, dédup, persistance puis déclenchement éventuel.
type Pipeline struct {
	logger     zerolog.Logger
	feeds      ports.FeedSourceRepository
	items      ports.ItemRepository
	parsers    FeedParserResolver
	normalizer LinkNormalizer
	gate       *DedupGate
	trigger    ItemTrigger
	metrics    *Metrics
	opts       PipelineOptions
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func NewPipeline(
	logger zerolog.Logger,
	feeds ports.FeedSourceRepository,
	items ports.ItemRepository,
	parsers FeedParserResolver,
	normalizer LinkNormalizer,
	gate *DedupGate,
	trigger ItemTrigger,
	metrics *Metrics,
	opts PipelineOptions,
) *Pipeline {
	if opts.NormalizeConcurrency <= 0 {
		opts.NormalizeConcurrency = DefaultPipelineOptions().NormalizeConcurrency
	}
	return &Pipeline{
		logger:     logger,
		feeds:      feeds,
		items:      items,
		parsers:    parsers,
		normalizer: normalizer,
		gate:       gate,
		trigger:    trigger,
		metrics:    metrics,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		inFlight:   map[int64]struct{}{},
	}
}

// Run ne panique pas et ne renvoie pas d'erreur Go : tout est dans RunResult.
// Un second appel concurrent pour la même source est rejeté (run_in_progress).
func (p *Pipeline) Run(ctx context.Context, feedSourceID int64, autoDownload bool) RunResult {
	start := time.Now()
	logger := p.logger.With().Str("run_id", xid.New().String()).Int64("feed_source_id", feedSourceID).Logger()

	if !p.acquire(feedSourceID) {
		logger.Info().Msg("feed check already in progress")
		return p.finish(logger, start, RunResult{
			FeedSourceID: feedSourceID,
			Err:          coded(CodeRunInProgress, "feed check already in progress", nil),
		})
	}
	defer p.release(feedSourceID)

	res := p.run(ctx, logger, feedSourceID, autoDownload)
	return p.finish(logger, start, res)
}

func (p *Pipeline) acquire(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[id]; busy {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *Pipeline) release(id int64) {
	p.mu.Lock()
	delete(p.inFlight, id)
	p.mu.Unlock()
}

func (p *Pipeline) finish(logger zerolog.Logger, start time.Time, res RunResult) RunResult {
	outcome := res.Outcome()
	p.metrics.runFinished(outcome, time.Since(start).Seconds(), res.NewItemCount)

	if res.Err != nil {
		logger.Warn().Err(res.Err).Str("outcome", outcome).Msg("feed check failed")
	} else {
		logger.Info().Str("outcome", outcome).Int("new_items", res.NewItemCount).Dur("took", time.Since(start)).Msg("feed check done")
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, feedSourceID int64, autoDownload bool) RunResult {
	res := RunResult{FeedSourceID: feedSourceID}

	fs, err := p.feeds.Get(ctx, feedSourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			res.Err = coded(CodeFeedSourceNotFound, "feed source not found", err)
		} else {
			res.Err = err
		}
		return res
	}
	if !fs.Active {
		res.Success = true
		res.Skipped = true
		return res
	}

	known, err := p.items.KnownURLs(ctx, fs.ID)
	if err != nil {
		res.Err = err
		return res
	}

	parser, err := p.parsers.FeedParserFor(fs.URL)
	if err != nil {
		res.Err = coded(CodeNoParser, "no feed parser for "+fs.URL, err)
		return res
	}

	parsed := parser.ParseFeed(ctx, fs.URL, known)
	if !parsed.OK {
		code := CodeFeedUnparsable
		if parsed.Failure == sources.FailureUnreachable {
			code = CodeFeedUnreachable
		}
		res.Err = coded(code, "feed "+fs.URL, parsed.Err)
		return res
	}

	// Le flux a été atteint : last_checked est mis à jour même sans nouveauté.
	if err := p.feeds.UpdateLastChecked(ctx, fs.ID, p.now()); err != nil {
		logger.Warn().Err(err).Msg("failed to update last checked")
	}

	candidates := p.normalizeAll(ctx, logger, fs.ID, parsed.NewItems)

	for _, cand := range candidates {
		item, created, err := p.gate.FindOrCreateItem(ctx, cand)
		if err != nil {
			logger.Warn().Err(err).Str("url", cand.URL).Msg("failed to persist item")
			p.metrics.dropped("persist_failed")
			continue
		}
		if !created {
			p.metrics.dropped("duplicate")
			continue
		}
		res.NewItems = append(res.NewItems, item)
	}
	res.NewItemCount = len(res.NewItems)
	res.Success = true

	if autoDownload && fs.AutoDownload && p.trigger != nil {
		for _, item := range res.NewItems {
			if _, err := p.trigger.OnNewItem(ctx, item); err != nil {
				logger.Warn().Err(err).Int64("item_id", item.ID).Msg("download trigger failed")
			}
		}
	}
	return res
}

// normalizeAll convertit les liens en parallèle (borné) et conserve l'ordre du flux.
// Les entrées sans lien persistable sont écartées et comptées.
func (p *Pipeline) normalizeAll(ctx context.Context, logger zerolog.Logger, feedSourceID int64, raw []sources.RawItem) []domain.Item {
	out := make([]*domain.Item, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.NormalizeConcurrency)

	for i := range raw {
		i := i
		g.Go(func() error {
			item, reason := p.normalizeOne(gctx, logger, feedSourceID, raw[i])
			if reason != "" {
				p.metrics.dropped(reason)
				return nil
			}
			out[i] = &item
			return nil
		})
	}
	_ = g.Wait()

	items := make([]domain.Item, 0, len(out))
	for _, it := range out {
		if it != nil {
			items = append(items, *it)
		}
	}
	return items
}

func (p *Pipeline) normalizeOne(ctx context.Context, logger zerolog.Logger, feedSourceID int64, raw sources.RawItem) (domain.Item, string) {
	if len(raw.Links) == 0 {
		logger.Debug().Str("title", raw.Title).Msg("entry has no link")
		return domain.Item{}, "no_link"
	}

	reason := "disallowed_type"
	for _, l := range raw.Links {
		u, typ, err := p.normalizer.Normalize(ctx, l.URL, l.Type)
		if err != nil {
			if !errors.Is(err, linktype.ErrDisallowedType) {
				reason = "normalize_failed"
				logger.Warn().Err(err).Str("title", raw.Title).Str("url", l.URL).Msg("link normalization failed")
			}
			continue
		}
		if !typ.Persistable() {
			continue
		}

		item := domain.Item{
			FeedSourceID: feedSourceID,
			Episode:      raw.Episode,
			EpisodeTitle: raw.EpisodeTitle,
			LinkType:     typ,
			URL:          u,
			Size:         raw.Size,
			PublishedAt:  raw.PublishedAt,
			Available:    true,
			Metadata:     raw.Metadata,
		}
		if u != l.URL {
			item.SourceURL = l.URL
		}
		if item.Size == nil && typ == domain.LinkEd2k {
			if ed, ok := linktype.ParseEd2k(u); ok {
				size := ed.Size
				item.Size = &size
			}
		}
		return item, ""
	}

	logger.Debug().Str("title", raw.Title).Str("reason", reason).Msg("entry dropped")
	return domain.Item{}, reason
}
