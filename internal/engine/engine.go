package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/enotrack/enotrack/internal/config"
	"github.com/enotrack/enotrack/internal/observability"
	"github.com/enotrack/enotrack/internal/types"
)

// Fetcher is the interface the engine drives one page at a time.
type Fetcher interface {
	FetchPage(ctx context.Context, categoryURL string, page int) types.PageOutcome
}

// Extractor turns one page's markup fragment into listing items.
type Extractor interface {
	Extract(markup string, observedAt time.Time) ([]types.RawItem, error)
}

// Sink receives completed per-page batches. Implementations are expected
// to upsert by identifier and to append exactly one price observation per
// item per call.
type Sink interface {
	Ingest(ctx context.Context, items []types.RawItem, category string) error
}

// CategoryResult summarizes one category's pagination run.
type CategoryResult struct {
	Category     string
	StartPage    int
	PagesFetched int
	ItemsEmitted int

	// Blocked is set when the origin's anti-automation defense fired;
	// BlockedPage is the page at which it happened, so the scheduler can
	// resume there after the cooldown.
	Blocked     bool
	BlockedPage int
}

// Engine walks one category's pagination: fetch, extract, emit, rate-limit,
// next page. A single sequential worker by design, to stay under the
// origin's abuse-detection threshold.
type Engine struct {
	fetcher   Fetcher
	extractor Extractor
	sink      Sink
	cfg       *config.CrawlerConfig
	logger    *slog.Logger
	metrics   *observability.Metrics

	// pageSigs remembers signatures of recently emitted pages as an extra
	// safeguard against a catalog that serves the same page forever.
	pageSigs *lru.Cache[string, struct{}]

	// sleep and now are swappable in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates an Engine.
func New(cfg *config.CrawlerConfig, fetcher Fetcher, extractor Extractor, sink Sink,
	metrics *observability.Metrics, logger *slog.Logger) (*Engine, error) {

	size := cfg.PageCacheSize
	if size <= 0 {
		size = 256
	}
	sigs, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create page signature cache: %w", err)
	}

	return &Engine{
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		cfg:       cfg,
		logger:    logger.With("component", "crawl_engine"),
		metrics:   metrics,
		pageSigs:  sigs,
		sleep:     time.Sleep,
		now:       time.Now,
	}, nil
}

// CrawlCategory paginates one category starting at startPage. It returns a
// result describing how the run ended; a non-nil error is an unexpected
// failure (sink I/O), not an end-of-data or blocking condition.
//
// Stop conditions, in order, after each successful page:
//  1. zero items extracted: done, page excluded;
//  2. item count differs from the previous page's: done, page included
//     (the catalog serves constant-size pages until the final partial one);
//  3. not-found or malformed response: done;
//  4. blocked: stop and report the page for resumption.
func (e *Engine) CrawlCategory(ctx context.Context, categoryURL string, startPage int) (CategoryResult, error) {
	if startPage < 1 {
		startPage = 1
	}
	res := CategoryResult{Category: categoryURL, StartPage: startPage}

	// The signature safeguard is scoped to one category run; a fresh run
	// legitimately sees the same pages again.
	e.pageSigs.Purge()

	page := startPage
	lastCount := -1

	for {
		fetchStart := time.Now()
		outcome := e.fetcher.FetchPage(ctx, categoryURL, page)
		e.metrics.ObserveFetch(time.Since(fetchStart))
		e.metrics.IncPage(outcome.Status.String())

		switch outcome.Status {
		case types.PageBlocked:
			e.metrics.IncBlocked()
			e.logger.Warn("category blocked", "category", categoryURL, "page", page)
			res.Blocked = true
			res.BlockedPage = page
			return res, nil
		case types.PageNotFound:
			e.logger.Info("pagination exhausted", "category", categoryURL, "page", page)
			return res, nil
		case types.PageMalformed:
			e.logger.Warn("malformed page response, stopping category",
				"category", categoryURL, "page", page, "error", outcome.Err)
			return res, nil
		}
		res.PagesFetched++

		items, err := e.extractor.Extract(outcome.Markup, e.now().UTC())
		if err != nil {
			e.logger.Warn("unparseable page markup, stopping category",
				"page", page, "error", &types.ParseError{Category: categoryURL, Err: err})
			return res, nil
		}
		if len(items) == 0 {
			e.logger.Info("no items on page, stopping category", "category", categoryURL, "page", page)
			return res, nil
		}

		sig := pageSignature(categoryURL, items)
		if _, seen := e.pageSigs.Get(sig); seen {
			e.logger.Info("identical page served again, stopping category",
				"category", categoryURL, "page", page)
			return res, nil
		}
		e.pageSigs.Add(sig, struct{}{})

		// Emit per page, not per category, so partial progress survives a
		// later blocking event.
		if err := e.sink.Ingest(ctx, items, categoryURL); err != nil {
			return res, &types.StorageError{Op: "ingest", Err: err}
		}
		res.ItemsEmitted += len(items)
		e.metrics.AddItems(len(items))
		e.logger.Info("page emitted", "category", categoryURL, "page", page, "items", len(items))

		if lastCount >= 0 && len(items) != lastCount {
			e.logger.Info("page size changed, treating as last page",
				"category", categoryURL, "page", page, "count", len(items), "previous", lastCount)
			return res, nil
		}
		lastCount = len(items)
		page++

		e.rateLimit()
	}
}

// rateLimit sleeps a uniform random duration inside the configured
// [min,max] minute window.
func (e *Engine) rateLimit() {
	minD := time.Duration(e.cfg.DelayMinMinutes) * time.Minute
	maxD := time.Duration(e.cfg.DelayMaxMinutes) * time.Minute
	if maxD <= 0 {
		return
	}
	d := minD
	if maxD > minD {
		d = minD + time.Duration(rand.Int63n(int64(maxD-minD)))
	}
	e.logger.Debug("inter-page delay", "duration", d)
	e.sleep(d)
}

// pageSignature derives a stable signature from the sorted identifier set
// of a page. Two pages with the same identifiers signature equal.
func pageSignature(category string, items []types.RawItem) string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.Identifier
	}
	sort.Strings(ids)
	return category + "|" + strings.Join(ids, ",")
}
