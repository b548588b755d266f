// Package internal wires the listingpulse application together.
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"listingpulse/internal/config"
	"listingpulse/internal/database"
	"listingpulse/internal/jobs"
)

// Application wraps cartridge.Application with the migration-aware DB manager
// and the job scheduler.
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config. The
// manual rescore endpoint and the scheduled rescore share one job so they
// never run concurrently.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := dbManager.MigrateDatabase(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:       cfg,
		Logger:       logger,
		DBManager:    dbManager,
		ServerConfig: NewServerConfig(),
		RouteMountFunc: func(srv *cartridge.Server) {
			MountAppRoutesWith(srv, RouteDeps{Rescore: scheduler.Rescore})
		},
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Scheduler:   scheduler,
	}, nil
}

// NewServerConfig returns cartridge defaults with the global Sec-Fetch-Site
// check disabled. Collectors are called by servers and admin routes by
// Bearer-key clients, neither of which sends the header.
func NewServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	return cfg
}
