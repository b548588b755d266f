package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"listingpulse/internal/config"
	"listingpulse/internal/events"
)

const cleanupBatchSize = 1000

// CleanupJob removes raw traffic and conversion rows older than the retention period.
type CleanupJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	// pause between batches to limit lock contention with ingestion
	pause time.Duration
}

func NewCleanupJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		pause:     100 * time.Millisecond,
	}
}

// Run deletes expired rows in batches. A retention of zero or less keeps
// everything.
func (j *CleanupJob) Run(ctx context.Context) error {
	retentionDays := j.cfg.RawEventsRetentionDays
	if retentionDays <= 0 {
		j.logger.Debug("Raw event retention disabled")
		return nil
	}

	db := j.dbManager.GetConnection()
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old raw events",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoff))

	traffic, err := j.deleteInBatches(ctx, db, cutoff, events.DeleteTrafficBefore)
	if err != nil {
		j.logger.Error("Failed to delete old traffic events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", traffic))
		return err
	}

	conversions, err := j.deleteInBatches(ctx, db, cutoff, events.DeleteConversionsBefore)
	if err != nil {
		j.logger.Error("Failed to delete old conversion events",
			slog.Any("error", err),
			slog.Int64("deleted_so_far", conversions))
		return err
	}

	j.logger.Info("Cleaned up old raw events",
		slog.Int64("traffic_deleted", traffic),
		slog.Int64("conversions_deleted", conversions),
		slog.Int("retention_days", retentionDays))
	return nil
}

func (j *CleanupJob) deleteInBatches(ctx context.Context, db *gorm.DB, cutoff time.Time, deleteBatch func(*gorm.DB, time.Time, int) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := deleteBatch(db, cutoff, cleanupBatchSize)
		if err != nil {
			return total, err
		}
		total += deleted

		if deleted < cleanupBatchSize {
			return total, nil
		}
		time.Sleep(j.pause)
	}
}
