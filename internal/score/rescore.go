package score

import (
	"context"
	"log/slog"
	"time"
)

// Candidate is one product eligible for scoring.
type Candidate struct {
	Code         string
	CurrentPrice float64
	Score        *float64 // previously stored score, nil if never scored
}

// HistorySource is the persistence surface the recomputer reads from and
// writes back to.
type HistorySource interface {
	// ScoringCandidates lists all products with their current price and
	// stored score.
	ScoringCandidates(ctx context.Context) ([]Candidate, error)

	// FetchHistory returns a product's price observations in timestamp
	// order.
	FetchHistory(ctx context.Context, code string) ([]Observation, error)

	// SaveScore writes a product's convenience score back.
	SaveScore(ctx context.Context, code string, value float64) error
}

// Recomputer recalculates convenience scores for every stored product.
// It runs synchronously after a full crawl cycle; crawling and scoring are
// sequenced, never concurrent.
type Recomputer struct {
	src    HistorySource
	logger *slog.Logger

	// now is swappable so tests can pin the evaluation instant.
	now func() time.Time
}

// NewRecomputer creates a Recomputer.
func NewRecomputer(src HistorySource, logger *slog.Logger) *Recomputer {
	return &Recomputer{
		src:    src,
		logger: logger.With("component", "score_recomputer"),
		now:    time.Now,
	}
}

// RescoreAll recomputes the score of every product from its full stored
// history and writes back only changed values. It returns the number of
// products updated. Per-product failures are logged and skipped; they do
// not abort the batch.
func (r *Recomputer) RescoreAll(ctx context.Context) (int, error) {
	candidates, err := r.src.ScoringCandidates(ctx)
	if err != nil {
		return 0, err
	}
	evalAt := r.now().UTC()

	updated := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if c.CurrentPrice <= 0 {
			continue
		}

		history, err := r.src.FetchHistory(ctx, c.Code)
		if err != nil {
			r.logger.Warn("history fetch failed", "code", c.Code, "error", err)
			continue
		}
		if len(history) == 0 {
			continue
		}

		value := Convenience(history, c.CurrentPrice, evalAt)
		if c.Score != nil && *c.Score == value {
			continue
		}
		if err := r.src.SaveScore(ctx, c.Code, value); err != nil {
			r.logger.Warn("score save failed", "code", c.Code, "error", err)
			continue
		}
		updated++
	}

	r.logger.Info("rescore pass complete", "candidates", len(candidates), "updated", updated)
	return updated, nil
}
