// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Bounds of the rolling trending window.
const (
	MinTrendingWindowDays = 7
	MaxTrendingWindowDays = 14
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	AdminAPIKey string   `mapstructure:"adminapikey"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	GeoLiteLicenseKey     string `mapstructure:"geolitelicensekey"`
	GeoLiteSchedule       string `mapstructure:"geoliteschedule"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Dashboard settings
	SnapshotCacheTTLSeconds int `mapstructure:"snapshotcachettlseconds"`
	SnapshotWorkers         int `mapstructure:"snapshotworkers"`
	LiveWindowSeconds       int `mapstructure:"livewindowseconds"`

	// Trending score settings
	TrendingWindowDays int    `mapstructure:"trendingwindowdays"`
	RescoreSchedule    string `mapstructure:"rescoreschedule"`
	RescoreBatchSize   int    `mapstructure:"rescorebatchsize"`

	// Data retention settings
	RawEventsRetentionDays int `mapstructure:"raweventsretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "listingpulse")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-Country.mmdb")
		v.SetDefault("geoliteschedule", "@weekly")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("snapshotcachettlseconds", 30)
		v.SetDefault("snapshotworkers", 8)
		v.SetDefault("livewindowseconds", 300)
		v.SetDefault("trendingwindowdays", 14)
		v.SetDefault("rescoreschedule", "@every 15m")
		v.SetDefault("rescorebatchsize", 200)
		v.SetDefault("raweventsretentiondays", 90)

		v.BindEnv("appname", "LISTINGPULSE_APP_NAME")
		v.BindEnv("appport", "LISTINGPULSE_APP_PORT")
		v.BindEnv("environment", "LISTINGPULSE_ENV")
		v.BindEnv("loglevel", "LISTINGPULSE_LOG_LEVEL")
		v.BindEnv("privatekey", "LISTINGPULSE_PRIVATE_KEY")
		v.BindEnv("adminapikey", "LISTINGPULSE_ADMIN_API_KEY")
		v.BindEnv("storagepath", "LISTINGPULSE_STORAGE_PATH")
		v.BindEnv("geodbpath", "LISTINGPULSE_GEO_DB_PATH")
		v.BindEnv("geolitelicensekey", "LISTINGPULSE_GEOLITE_LICENSE_KEY")
		v.BindEnv("geoliteschedule", "LISTINGPULSE_GEOLITE_SCHEDULE")
		v.BindEnv("publicdir", "LISTINGPULSE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LISTINGPULSE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "LISTINGPULSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LISTINGPULSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LISTINGPULSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LISTINGPULSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "LISTINGPULSE_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "LISTINGPULSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LISTINGPULSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("snapshotcachettlseconds", "LISTINGPULSE_SNAPSHOT_CACHE_TTL_SECONDS")
		v.BindEnv("snapshotworkers", "LISTINGPULSE_SNAPSHOT_WORKERS")
		v.BindEnv("livewindowseconds", "LISTINGPULSE_LIVE_WINDOW_SECONDS")
		v.BindEnv("trendingwindowdays", "LISTINGPULSE_TRENDING_WINDOW_DAYS")
		v.BindEnv("rescoreschedule", "LISTINGPULSE_RESCORE_SCHEDULE")
		v.BindEnv("rescorebatchsize", "LISTINGPULSE_RESCORE_BATCH_SIZE")
		v.BindEnv("raweventsretentiondays", "LISTINGPULSE_RAW_EVENTS_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique LISTINGPULSE_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.SnapshotCacheTTLSeconds < 0 {
		return fmt.Errorf("snapshot cache ttl must not be negative: %d", c.SnapshotCacheTTLSeconds)
	}
	if c.TrendingWindowDays < MinTrendingWindowDays || c.TrendingWindowDays > MaxTrendingWindowDays {
		return fmt.Errorf("trending window must be between %d and %d days: %d",
			MinTrendingWindowDays, MaxTrendingWindowDays, c.TrendingWindowDays)
	}
	if c.RescoreSchedule == "" {
		return fmt.Errorf("rescore schedule is required")
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for test stability)
// - Development/Production: 10 (allows concurrent reads for parallel snapshot sections)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// SnapshotCacheTTL returns how long a built dashboard snapshot stays fresh.
func (c *Config) SnapshotCacheTTL() time.Duration {
	return time.Duration(c.SnapshotCacheTTLSeconds) * time.Second
}

// LiveWindow returns the lookback used for the live visitor counter.
func (c *Config) LiveWindow() time.Duration {
	return time.Duration(c.LiveWindowSeconds) * time.Second
}

// TrendingWindow returns the rolling engagement window for the trending score.
func (c *Config) TrendingWindow() time.Duration {
	return time.Duration(c.TrendingWindowDays) * 24 * time.Hour
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
