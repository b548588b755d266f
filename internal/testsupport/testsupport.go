package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listingpulse/internal"
	"listingpulse/internal/config"
	"listingpulse/internal/database"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
)

// Browser user agents shared by fixtures.
const (
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	MobileUserAgent  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	BotUserAgent     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

// testDBCache caches test databases by root test name so setup helpers called
// from subtests share one database.
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager.
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a named shared-cache in-memory database with every
// model migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager with a quiet logger.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()
	if cfg.IsProduction() {
		t.Fatalf("CRITICAL: Tests must not run in production! Set LISTINGPULSE_ENV=test")
	}
	cfg.Environment = config.Test

	db := SetupTestDB(t)
	return NewTestDBManager(db), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)
	CleanTables(db, tableNames)
}

// CleanTables clears the given tables and resets their sequences.
func CleanTables(db *gorm.DB, tables []string) {
	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateTestListing inserts listing, filling name, slug and creation time
// when unset.
func CreateTestListing(t *testing.T, db *gorm.DB, listing listings.Listing) listings.Listing {
	t.Helper()

	if listing.Name == "" {
		listing.Name = fmt.Sprintf("Program %d", time.Now().UnixNano())
	}
	if listing.Slug == "" {
		listing.Slug = listings.Slugify(listing.Name)
	}
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = time.Now().UTC()
	}
	require.NoError(t, db.Create(&listing).Error)
	return listing
}

// Visit describes a traffic fixture row.
type Visit struct {
	IP          string
	UserAgent   string
	Fingerprint string
	Referrer    string
	Country     string
	Path        string
	At          time.Time
}

// CreateTrafficEvent inserts one traffic row. A zero IP or user agent gets a
// desktop default.
func CreateTrafficEvent(t *testing.T, db *gorm.DB, visit Visit) events.TrafficEvent {
	t.Helper()

	event := events.TrafficEvent{
		Timestamp:   visit.At.UTC(),
		IPAddress:   visit.IP,
		Fingerprint: visit.Fingerprint,
		UserAgent:   visit.UserAgent,
		ReferrerURL: visit.Referrer,
		CountryCode: visit.Country,
		Path:        visit.Path,
		CreatedAt:   time.Now().UTC(),
	}
	if event.IPAddress == "" {
		event.IPAddress = "203.0.113.10"
	}
	if event.UserAgent == "" {
		event.UserAgent = DesktopUserAgent
	}
	if event.Path == "" {
		event.Path = "/"
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

// CreateConversion inserts one conversion row.
func CreateConversion(t *testing.T, db *gorm.DB, kind events.ConversionKind, listingID uint, visitorKey string, at time.Time) events.ConversionEvent {
	t.Helper()

	event := events.ConversionEvent{
		Timestamp:  at.UTC(),
		Kind:       kind,
		ListingID:  listingID,
		VisitorKey: visitorKey,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

// CreateMinimalTestApp creates a fiber app with all routes mounted on db.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB) *fiber.App {
	t.Helper()

	dbManager := NewTestDBManager(db)
	appConfig := config.GetConfig()
	appConfig.Environment = config.Test

	cfg := internal.NewServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv)
	return srv.App()
}
