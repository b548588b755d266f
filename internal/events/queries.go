package events

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ConversionFilter narrows a conversion query.
type ConversionFilter struct {
	Kind      ConversionKind
	From      time.Time
	To        time.Time
	ListingID uint // zero means all listings
}

// LoadTraffic returns traffic rows with from <= timestamp <= to, oldest first.
func LoadTraffic(ctx context.Context, db *gorm.DB, from, to time.Time) ([]TrafficEvent, error) {
	var rows []TrafficEvent
	err := db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", from.UTC(), to.UTC()).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load traffic events: %w", err)
	}
	return rows, nil
}

// LoadConversions returns conversion rows matching the filter, oldest first.
func LoadConversions(ctx context.Context, db *gorm.DB, filter ConversionFilter) ([]ConversionEvent, error) {
	query := db.WithContext(ctx).
		Where("kind = ?", filter.Kind).
		Where("timestamp >= ? AND timestamp <= ?", filter.From.UTC(), filter.To.UTC())
	if filter.ListingID != 0 {
		query = query.Where("listing_id = ?", filter.ListingID)
	}

	var rows []ConversionEvent
	if err := query.Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load %s conversions: %w", filter.Kind, err)
	}
	return rows, nil
}

// ListingEngagement is the distinct engagement of one listing over a window.
type ListingEngagement struct {
	ListingID      uint
	UniqueViews    int
	OutboundClicks int
}

// CountListingEngagement counts distinct VIEW visitors and raw CLICK events
// per listing since from.
func CountListingEngagement(ctx context.Context, db *gorm.DB, from time.Time) (map[uint]ListingEngagement, error) {
	type row struct {
		ListingID uint
		Views     int
		Clicks    int
	}

	var rows []row
	err := db.WithContext(ctx).Raw(`
		SELECT listing_id,
			COUNT(DISTINCT CASE WHEN kind = ? THEN visitor_key END) AS views,
			SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END) AS clicks
		FROM conversion_events
		WHERE timestamp >= ?
		GROUP BY listing_id`,
		ConversionKindView, ConversionKindClick, from.UTC()).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count listing engagement: %w", err)
	}

	result := make(map[uint]ListingEngagement, len(rows))
	for _, r := range rows {
		result[r.ListingID] = ListingEngagement{
			ListingID:      r.ListingID,
			UniqueViews:    r.Views,
			OutboundClicks: r.Clicks,
		}
	}
	return result, nil
}

// DeleteTrafficBefore removes up to batchSize traffic rows older than cutoff.
func DeleteTrafficBefore(db *gorm.DB, cutoff time.Time, batchSize int) (int64, error) {
	result := db.Exec(`DELETE FROM traffic_events WHERE id IN (
		SELECT id FROM traffic_events WHERE timestamp < ? LIMIT ?)`, cutoff.UTC(), batchSize)
	return result.RowsAffected, result.Error
}

// DeleteConversionsBefore removes up to batchSize conversion rows older than cutoff.
func DeleteConversionsBefore(db *gorm.DB, cutoff time.Time, batchSize int) (int64, error) {
	result := db.Exec(`DELETE FROM conversion_events WHERE id IN (
		SELECT id FROM conversion_events WHERE timestamp < ? LIMIT ?)`, cutoff.UTC(), batchSize)
	return result.RowsAffected, result.Error
}
