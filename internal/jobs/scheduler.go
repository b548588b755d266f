package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/robfig/cron/v3"

	"listingpulse/internal/config"
)

const cleanupInterval = 24 * time.Hour

// Scheduler runs the background jobs: trending rescoring and the GeoLite
// refresh on cron schedules, raw event cleanup on a daily ticker.
// Implements cartridge.BackgroundWorker.
type Scheduler struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool

	// running tracks jobs that are executing so a slow run is never overlapped
	// by its next tick.
	runningMu sync.Mutex
	running   map[string]bool

	Rescore *RescoreJob
	cleanup *CleanupJob
	geolite *GeoLiteUpdaterJob

	cron          *cron.Cron
	cleanupTicker *time.Ticker
}

func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) (*Scheduler, error) {
	if _, err := cron.ParseStandard(cfg.RescoreSchedule); err != nil {
		return nil, fmt.Errorf("invalid rescore schedule %q: %w", cfg.RescoreSchedule, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		running:   make(map[string]bool),
		cron:      cron.New(),
	}

	s.Rescore = NewRescoreJob(dbManager, logger, cfg)
	s.cleanup = NewCleanupJob(dbManager, logger, cfg)
	s.geolite = NewGeoLiteUpdaterJob(logger, cfg)

	return s, nil
}

// executeJobSafely runs a job unless a previous run of the same job is still
// executing. Panics are recovered and logged.
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func(ctx context.Context) error) {
	s.runningMu.Lock()
	if s.running[jobName] {
		s.logger.Debug("Skipping job execution - previous run still active", slog.String("job", jobName))
		s.runningMu.Unlock()
		return
	}
	s.running[jobName] = true
	s.runningMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.runningMu.Lock()
		delete(s.running, jobName)
		s.runningMu.Unlock()
	}()

	if err := jobFunc(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start schedules every job and runs rescoring and cleanup once immediately.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	if _, err := s.cron.AddFunc(s.cfg.RescoreSchedule, func() {
		s.executeJobSafely("rescore", s.Rescore.Run)
	}); err != nil {
		return fmt.Errorf("schedule rescore job: %w", err)
	}

	if s.geolite.Configured() {
		if _, err := s.cron.AddFunc(s.cfg.GeoLiteSchedule, func() {
			s.executeJobSafely("geolite_updater", s.geolite.Run)
		}); err != nil {
			return fmt.Errorf("schedule geolite job: %w", err)
		}
	}

	s.isRunning = true
	s.cron.Start()
	go s.executeJobSafely("rescore", s.Rescore.Run)
	s.startCleanupJob()

	s.logger.Info("Background jobs started",
		slog.String("rescore_schedule", s.cfg.RescoreSchedule),
		slog.Bool("geolite", s.geolite.Configured()))

	return nil
}

func (s *Scheduler) startCleanupJob() {
	s.logger.Info("Starting cleanup job", slog.Duration("interval", cleanupInterval))
	s.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		s.executeJobSafely("cleanup", s.cleanup.Run)

		for {
			select {
			case <-s.cleanupTicker.C:
				s.executeJobSafely("cleanup", s.cleanup.Run)
			case <-s.ctx.Done():
				s.logger.Info("Cleanup job stopped")
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running cron jobs to return.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	s.cancel()
	<-s.cron.Stop().Done()

	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}
