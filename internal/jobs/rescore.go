package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/karloscodes/cartridge"

	"listingpulse/internal/config"
	"listingpulse/internal/listings"
	"listingpulse/internal/timeframe"
)

// ErrRescoreInProgress is returned when a rescoring pass is already running.
var ErrRescoreInProgress = errors.New("rescore already in progress")

// RescoreJob recomputes every listing's trending score.
type RescoreJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	clock     timeframe.TimeProvider
	mu        sync.Mutex
}

func NewRescoreJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *RescoreJob {
	return &RescoreJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		clock:     &timeframe.DefaultTimeProvider{},
	}
}

// WithClock replaces the job's time source.
func (j *RescoreJob) WithClock(clock timeframe.TimeProvider) *RescoreJob {
	j.clock = clock
	return j
}

// Run is the scheduled entry point.
func (j *RescoreJob) Run(ctx context.Context) error {
	_, err := j.RunNow(ctx)
	if errors.Is(err, ErrRescoreInProgress) {
		j.logger.Debug("Rescore skipped, another pass is running")
		return nil
	}
	return err
}

// RunNow performs one pass and reports its result. Passes never overlap.
func (j *RescoreJob) RunNow(ctx context.Context) (listings.RescoreResult, error) {
	if !j.mu.TryLock() {
		return listings.RescoreResult{}, ErrRescoreInProgress
	}
	defer j.mu.Unlock()

	return listings.Rescore(ctx, j.logger, j.dbManager.GetConnection(), listings.RescoreOptions{
		Now:       j.clock.Now(),
		Window:    j.cfg.TrendingWindow(),
		BatchSize: j.cfg.RescoreBatchSize,
	})
}
