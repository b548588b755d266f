package listings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"listingpulse/internal/events"
	"listingpulse/internal/trending"
)

// RescoreOptions configures one full-table rescoring pass.
type RescoreOptions struct {
	Now       time.Time
	Window    time.Duration
	BatchSize int
}

// RescoreResult summarizes a pass. Failed counts per-listing write errors.
type RescoreResult struct {
	Scored   int
	Failed   int
	Duration time.Duration
}

// Breakdown computes the live score of one listing without writing it.
func Breakdown(ctx context.Context, db *gorm.DB, listing *Listing, now time.Time, window time.Duration) (trending.Breakdown, error) {
	engagement, err := events.CountListingEngagement(ctx, db, now.Add(-window))
	if err != nil {
		return trending.Breakdown{}, err
	}
	e := engagement[listing.ID]
	return trending.Score(listing.ScoreInput(e.UniqueViews, e.OutboundClicks), now), nil
}

// Rescore recomputes and stores the trending score of every listing. Engagement
// is loaded once for the window; listings are walked in id order in batches.
// A failed write is logged and counted; the pass continues.
func Rescore(ctx context.Context, logger *slog.Logger, db *gorm.DB, opts RescoreOptions) (RescoreResult, error) {
	started := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	now := opts.Now.UTC()

	engagement, err := events.CountListingEngagement(ctx, db, now.Add(-opts.Window))
	if err != nil {
		return RescoreResult{}, fmt.Errorf("rescore: %w", err)
	}

	var result RescoreResult
	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := ListBatch(ctx, db, lastID, opts.BatchSize)
		if err != nil {
			return result, fmt.Errorf("rescore: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			listing := &batch[i]
			e := engagement[listing.ID]
			score := trending.Score(listing.ScoreInput(e.UniqueViews, e.OutboundClicks), now)

			if err := UpdateTrendingScore(logger, db, listing.ID, score.Total, now); err != nil {
				logger.Error("Failed to store trending score",
					slog.Uint64("listing_id", uint64(listing.ID)),
					slog.Any("error", err))
				result.Failed++
				continue
			}
			result.Scored++
		}

		lastID = batch[len(batch)-1].ID
		if len(batch) < opts.BatchSize {
			break
		}
	}

	result.Duration = time.Since(started)
	logger.Info("Trending scores recomputed",
		slog.Int("scored", result.Scored),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration))

	if result.Failed > 0 {
		return result, fmt.Errorf("rescore: %d listing writes failed", result.Failed)
	}
	return result, nil
}
