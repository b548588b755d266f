package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

const (
	// KeyExcludedIPs holds a comma-separated list of client IPs whose hits are
	// never recorded.
	KeyExcludedIPs = "excluded_ips"
)

// Setting is an operator-managed key/value pair.
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

var (
	cacheMu          sync.RWMutex
	excludedIPsCache *cache.Cache[string, []string]
)

// SetupDefaultSettings inserts missing defaults and primes the exclusion cache.
func SetupDefaultSettings(dbConn *gorm.DB) error {
	defaults := []Setting{
		{Key: KeyExcludedIPs, Value: ""},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range defaults {
			err := tx.Exec(`
				INSERT INTO settings (key, value, created_at, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(key) DO NOTHING
			`, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	loadCache(dbConn, slog.Default())
	return err
}

// IsIPExcluded reports whether hits from ip are dropped at ingestion. It
// returns false until SetupDefaultSettings has run.
func IsIPExcluded(ip string) (bool, error) {
	cacheMu.RLock()
	c := excludedIPsCache
	cacheMu.RUnlock()
	if c == nil || ip == "" {
		return false, nil
	}

	excludedIPs, err := c.Get(KeyExcludedIPs)
	if err != nil {
		return false, fmt.Errorf("failed to check excluded IPs: %w", err)
	}
	for _, excluded := range excludedIPs {
		if excluded == ip {
			return true, nil
		}
	}
	return false, nil
}

// GetSetting returns the value stored under key.
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	if err := dbConn.Where("key = ?", key).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

// UpdateSetting upserts key and refreshes the exclusion cache.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			if err := tx.Create(&Setting{Key: key, Value: value}).Error; err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	loadCache(dbConn, slog.Default())
	return nil
}

// ListSettings returns every stored setting ordered by key.
func ListSettings(dbConn *gorm.DB) ([]Setting, error) {
	var result []Setting
	if err := dbConn.Order("key ASC").Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).
			Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).
			Scan(&value).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return splitList(value), nil
	}

	cacheMu.Lock()
	if excludedIPsCache != nil {
		excludedIPsCache.Clear()
	}
	excludedIPsCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
	cacheMu.Unlock()
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
