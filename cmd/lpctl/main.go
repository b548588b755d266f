// main.go - Admin control tool for listingpulse
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"listingpulse/internal"
	"listingpulse/internal/config"
	"listingpulse/internal/dashboard"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
	"listingpulse/internal/seeder"
	"listingpulse/internal/timeframe"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&RescoreCommand{},
	&SnapshotCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}
	if _, ok := cmd.(*HelpCommand); ok {
		_ = cmd.Execute(ctx, nil, args)
		return
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// RescoreCommand recomputes every trending score once.
type RescoreCommand struct{}

func (c *RescoreCommand) Name() string        { return "rescore" }
func (c *RescoreCommand) Description() string { return "Recomputes trending scores for all listings" }

func (c *RescoreCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot rescore")
	}

	result, err := app.Scheduler.Rescore.RunNow(ctx)
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}

	log.Printf("Scored %d listings (%d failed) in %s", result.Scored, result.Failed, result.Duration)
	return nil
}

// SnapshotCommand prints a freshly built dashboard snapshot as JSON.
type SnapshotCommand struct{}

func (c *SnapshotCommand) Name() string { return "snapshot" }
func (c *SnapshotCommand) Description() string {
	return "Prints the dashboard snapshot for a range (24h, 7d, 30d)"
}

func (c *SnapshotCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot build snapshot")
	}

	raw := ""
	if len(args) > 0 {
		raw = args[0]
	}
	r, err := timeframe.ParseRange(raw)
	if err != nil {
		return err
	}

	cfg := config.GetConfig()
	builder := dashboard.NewBuilder(app.DBManager.GetConnection(), slog.Default(), dashboard.Options{
		Workers:    cfg.SnapshotWorkers,
		LiveWindow: cfg.LiveWindow(),
	})
	snapshot, err := builder.Build(ctx, r)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

// SeedCommand populates the DB with demo listings and activity
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample data" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	eventCount := fs.Int("events", 10000, "number of traffic events to generate")
	days := fs.Int("days", 30, "spread events over this many past days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *eventCount)
	se.Days = *days
	if _, err := se.Run(ctx); err != nil {
		return err
	}
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var listingCount, trafficCount, conversionCount int64
	if err := db.Model(&listings.Listing{}).Count(&listingCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.TrafficEvent{}).Count(&trafficCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if err := db.Model(&events.ConversionEvent{}).Count(&conversionCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Listings: %d", listingCount)
	log.Printf("- Traffic events: %d", trafficCount)
	log.Printf("- Conversion events: %d", conversionCount)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	stats := sqlDB.Stats()
	log.Printf("- Max Open Connections: %d", stats.MaxOpenConnections)
	log.Printf("- Open Connections: %d", stats.OpenConnections)
	log.Printf("- In Use: %d", stats.InUse)
	log.Printf("- Idle: %d", stats.Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

func parseArgs() (string, []string) {
	args := flag.Args()
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: lpctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
