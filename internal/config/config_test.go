package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Environment:        Test,
		LogLevel:           LogLevelInfo,
		DatabaseType:       SQLiteDatabase,
		TrendingWindowDays: 14,
		RescoreSchedule:    "@every 15m",
	}
}

func TestValidateTrendingWindow(t *testing.T) {
	tests := []struct {
		days    int
		wantErr bool
	}{
		{days: 0, wantErr: true},
		{days: 1, wantErr: true},
		{days: 6, wantErr: true},
		{days: 7},
		{days: 10},
		{days: 14},
		{days: 15, wantErr: true},
		{days: 90, wantErr: true},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.TrendingWindowDays = tt.days

		err := cfg.validate()
		if tt.wantErr {
			assert.Errorf(t, err, "days=%d", tt.days)
		} else {
			assert.NoErrorf(t, err, "days=%d", tt.days)
		}
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "environment", mutate: func(c *Config) { c.Environment = "staging" }},
		{name: "database type", mutate: func(c *Config) { c.DatabaseType = "postgres" }},
		{name: "negative cache ttl", mutate: func(c *Config) { c.SnapshotCacheTTLSeconds = -1 }},
		{name: "empty rescore schedule", mutate: func(c *Config) { c.RescoreSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
