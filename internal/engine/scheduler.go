package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/enotrack/enotrack/internal/config"
	"github.com/enotrack/enotrack/internal/observability"
	"github.com/enotrack/enotrack/internal/types"
)

// categoryCrawler is what the scheduler drives per category. Satisfied by
// *Engine; narrowed to an interface so scheduler behavior is testable with
// synthetic crawls.
type categoryCrawler interface {
	CrawlCategory(ctx context.Context, categoryURL string, startPage int) (CategoryResult, error)
}

// Rescorer recomputes convenience scores after a fully successful cycle.
type Rescorer interface {
	RescoreAll(ctx context.Context) (int, error)
}

// CycleResult classifies how one scheduler iteration ended.
type CycleResult string

const (
	CycleComplete CycleResult = "complete"
	CycleBlocked  CycleResult = "blocked"
	CycleError    CycleResult = "error"
)

// Scheduler is the outer forever-loop: it iterates categories, drives the
// engine, owns the resume cursor, and enforces cooldown delays. It is the
// process's sole source of crawl cadence.
type Scheduler struct {
	crawler  categoryCrawler
	cfg      *config.CrawlerConfig
	cursors  *CursorStore
	rescorer Rescorer
	logger   *slog.Logger
	metrics  *observability.Metrics

	// cursor is owned exclusively by the scheduler: one writer, one
	// reader, replaced by value on each transition.
	cursor ResumeCursor

	sleep func(time.Duration)
}

// NewScheduler creates a Scheduler. rescorer may be nil to skip the
// post-cycle score recompute.
func NewScheduler(cfg *config.CrawlerConfig, crawler categoryCrawler, cursors *CursorStore,
	rescorer Rescorer, metrics *observability.Metrics, logger *slog.Logger) (*Scheduler, error) {

	if len(cfg.Categories) == 0 {
		return nil, types.ErrNoCategories
	}

	cursor, err := cursors.Load()
	if err != nil {
		logger.Warn("cursor load failed, starting from the beginning", "error", err)
		cursor = StartCursor
	}
	if cursor.CategoryIndex >= len(cfg.Categories) {
		cursor = StartCursor
	}

	return &Scheduler{
		crawler:  crawler,
		cfg:      cfg,
		cursors:  cursors,
		rescorer: rescorer,
		logger:   logger.With("component", "crawl_scheduler"),
		metrics:  metrics,
		cursor:   cursor,
		sleep:    time.Sleep,
	}, nil
}

// Cursor returns the current resume cursor.
func (s *Scheduler) Cursor() ResumeCursor { return s.cursor }

// Run loops forever: crawl a cycle, sleep, repeat. Blocking events pause
// the loop for the cooldown; everything else pauses it for the idle
// interval. The loop exits only when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler starting",
		"categories", len(s.cfg.Categories),
		"cursor", s.cursor.String(),
		"cooldown", s.cfg.Cooldown,
		"idle_interval", s.cfg.IdleInterval,
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return
		}

		result := s.RunCycle(ctx)
		s.metrics.IncCycle(string(result))

		switch result {
		case CycleBlocked:
			s.logger.Warn("cycle blocked, cooling down",
				"cursor", s.cursor.String(), "cooldown", s.cfg.Cooldown)
			s.sleep(s.cfg.Cooldown)
		default:
			s.sleep(s.cfg.IdleInterval)
		}
	}
}

// RunCycle executes one pass over the categories from the current cursor.
// It never panics outward: the scheduler loop is the last line of defense
// and must not terminate the process.
func (s *Scheduler) RunCycle(ctx context.Context) (result CycleResult) {
	defer func() {
		if r := recover(); r != nil {
			// Resume progress from a genuine blocking event is preserved:
			// the cursor is only replaced on observed transitions.
			s.logger.Error("cycle panicked", "panic", fmt.Sprintf("%v", r))
			result = CycleError
		}
	}()

	start := time.Now()
	cursor := s.cursor

	for i, category := range s.cfg.Categories {
		if i < cursor.CategoryIndex {
			continue
		}
		startPage := 1
		if i == cursor.CategoryIndex {
			startPage = cursor.PageNumber
		}

		res, err := s.crawler.CrawlCategory(ctx, category, startPage)
		if err != nil {
			// Unexpected failure: log it, keep the cursor untouched so a
			// transient bug neither stalls forever nor loses resume state.
			s.logger.Error("category crawl failed", "category", category, "error", err)
			return CycleError
		}

		if res.Blocked {
			s.setCursor(ResumeCursor{CategoryIndex: i, PageNumber: res.BlockedPage})
			return CycleBlocked
		}

		s.logger.Info("category complete",
			"category", category,
			"pages", res.PagesFetched,
			"items", res.ItemsEmitted,
		)
	}

	s.setCursor(StartCursor)
	s.logger.Info("cycle complete", "elapsed", time.Since(start).Round(time.Second))

	if s.rescorer != nil {
		updated, err := s.rescorer.RescoreAll(ctx)
		if err != nil {
			s.logger.Error("score recompute failed", "error", err)
		} else {
			s.metrics.AddScores(updated)
			s.logger.Info("score recompute complete", "updated", updated)
		}
	}
	return CycleComplete
}

// setCursor replaces the cursor value and persists it.
func (s *Scheduler) setCursor(c ResumeCursor) {
	s.cursor = c
	if c.IsStart() {
		if err := s.cursors.Reset(); err != nil {
			s.logger.Warn("cursor reset failed", "error", err)
		}
		return
	}
	if err := s.cursors.Save(c); err != nil {
		s.logger.Warn("cursor save failed", "cursor", c.String(), "error", err)
	}
}
