// Package geoip resolves client IPs to ISO country codes using an optional
// GeoLite2 country database.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"listingpulse/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger = slog.Default()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Open loads the database at path. It returns nil when the path is empty or
// the file is missing; country enrichment is then disabled.
func Open(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured, country enrichment disabled")
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("GeoLite2 database not found, country enrichment disabled",
			slog.String("path", path),
			slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		return nil
	} else if err != nil {
		logger.Warn("Error checking GeoLite2 database file", slog.String("path", path), slog.Any("error", err))
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database", slog.String("path", path), slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// GetGeoDB returns the process-wide reader, opening it on first use.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = Open(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reopens the database from the configured path.
func ReloadGeoDB() {
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = Open(config.GetConfig().GeoDBPath)
}

// Lookup resolves ipAddress with reader. It returns an upper-case ISO alpha-2
// code, or "" when the reader is nil or the address is unknown.
func Lookup(reader *geoip2.Reader, ipAddress string) string {
	if reader == nil {
		return ""
	}

	ip := net.ParseIP(strings.TrimSpace(ipAddress))
	if ip == nil {
		return ""
	}

	record, err := reader.Country(ip)
	if err != nil {
		logger.Debug("GeoIP lookup failed", slog.String("ip_address", ipAddress), slog.Any("error", err))
		return ""
	}

	code := strings.ToUpper(record.Country.IsoCode)
	if code == "" || code == "--" {
		return ""
	}
	return code
}

// LookupCountry resolves ipAddress against the process-wide database.
func LookupCountry(ipAddress string) string {
	return Lookup(GetGeoDB(), ipAddress)
}
