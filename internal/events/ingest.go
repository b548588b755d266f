package events

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"listingpulse/internal/pkg/geoip"
	"listingpulse/internal/settings"
	"listingpulse/internal/visitors"
)

var (
	ErrInvalidKind    = errors.New("invalid conversion kind")
	ErrMissingListing = errors.New("listing id is required")
)

// CollectTrafficInput is a page hit as reported by the collector.
type CollectTrafficInput struct {
	IPAddress   string
	Fingerprint string
	UserAgent   string
	ReferrerURL string
	CountryCode string
	Path        string
	Timestamp   time.Time
}

// CollectConversionInput is a listing VIEW or CLICK as reported by the collector.
type CollectConversionInput struct {
	Kind        ConversionKind
	ListingID   uint
	VisitorKey  string
	Fingerprint string
	IPAddress   string
	UserAgent   string
	Timestamp   time.Time
}

// CollectTraffic appends a traffic row. The country is resolved from the IP
// when the collector did not supply one. Hits from excluded IPs are dropped
// and return a nil event.
func CollectTraffic(dbManager cartridge.DBManager, logger *slog.Logger, input *CollectTrafficInput) (*TrafficEvent, error) {
	if isExcluded(logger, input.IPAddress) {
		return nil, nil
	}

	event := &TrafficEvent{
		Timestamp:   normalizeTimestamp(input.Timestamp),
		IPAddress:   strings.TrimSpace(input.IPAddress),
		Fingerprint: strings.TrimSpace(input.Fingerprint),
		UserAgent:   input.UserAgent,
		ReferrerURL: strings.TrimSpace(input.ReferrerURL),
		CountryCode: strings.ToUpper(strings.TrimSpace(input.CountryCode)),
		Path:        normalizePath(input.Path),
		CreatedAt:   time.Now().UTC(),
	}
	if event.CountryCode == "" {
		event.CountryCode = geoip.LookupCountry(event.IPAddress)
	}

	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error("Failed to store traffic event", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store traffic event: %w", err)
	}
	return event, nil
}

// CollectConversion appends a conversion row. The visitor key falls back to
// the identity derived from fingerprint, IP and user agent.
func CollectConversion(dbManager cartridge.DBManager, logger *slog.Logger, input *CollectConversionInput) (*ConversionEvent, error) {
	kind := ConversionKind(strings.ToUpper(strings.TrimSpace(string(input.Kind))))
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, input.Kind)
	}
	if input.ListingID == 0 {
		return nil, ErrMissingListing
	}

	if isExcluded(logger, input.IPAddress) {
		return nil, nil
	}

	visitorKey := strings.TrimSpace(input.VisitorKey)
	if visitorKey == "" {
		visitorKey = visitors.Identity(input.Fingerprint, input.IPAddress, input.UserAgent)
	}

	event := &ConversionEvent{
		Timestamp:  normalizeTimestamp(input.Timestamp),
		Kind:       kind,
		ListingID:  input.ListingID,
		VisitorKey: visitorKey,
		CreatedAt:  time.Now().UTC(),
	}

	err := sqlite.PerformWrite(logger, dbManager.GetConnection(), func(tx *gorm.DB) error {
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error("Failed to store conversion event",
			slog.String("kind", string(kind)),
			slog.Uint64("listing_id", uint64(input.ListingID)),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to store conversion event: %w", err)
	}
	return event, nil
}

func isExcluded(logger *slog.Logger, ip string) bool {
	excluded, err := settings.IsIPExcluded(strings.TrimSpace(ip))
	if err != nil {
		logger.Error("Error checking IP exclusion", slog.Any("error", err))
		return false
	}
	if excluded {
		logger.Debug("Skipping event for excluded IP", slog.String("ip", ip))
	}
	return excluded
}

func normalizeTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
