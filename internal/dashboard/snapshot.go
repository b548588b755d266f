// Package dashboard assembles, caches and serves per-range analytics
// snapshots.
package dashboard

import (
	"errors"
	"time"

	"listingpulse/internal/analytics"
	"listingpulse/internal/timeframe"
)

// ErrAnalyticsUnavailable is returned when no snapshot, fresh or stale, can be
// produced for a range.
var ErrAnalyticsUnavailable = errors.New("analytics unavailable")

// Section names, used as task names, log tags and warning keys.
const (
	SectionTraffic       = "traffic"
	SectionNewListings   = "new_listings"
	SectionEngagement    = "engagement"
	SectionBreakdowns    = "breakdowns"
	SectionReferrers     = "referrers"
	SectionFunnel        = "funnel"
	SectionTopListings   = "top_listings"
	SectionTopCategories = "top_categories"
	SectionSearchTerms   = "search_terms"
)

// Warning reports a section that failed and was replaced by its default.
type Warning struct {
	Section string `json:"section"`
	Message string `json:"message"`
}

// Snapshot is the read-only dashboard aggregate of one range. Once built it is
// never modified; the cache hands out copies when it needs to flag staleness.
type Snapshot struct {
	Range       timeframe.Range      `json:"range"`
	BucketSize  timeframe.BucketSize `json:"bucket_size"`
	From        time.Time            `json:"from"`
	To          time.Time            `json:"to"`
	GeneratedAt time.Time            `json:"generated_at"`

	LiveVisitors   int `json:"live_visitors"`
	UniqueVisitors int `json:"unique_visitors"`
	PageViews      int `json:"page_views"`
	BotsFiltered   int `json:"bots_filtered"`
	TotalViews     int `json:"total_views"`
	TotalClicks    int `json:"total_clicks"`

	Traffic     []analytics.TrafficPoint `json:"traffic"`
	NewListings []timeframe.DateStat     `json:"new_listings"`

	Breakdowns analytics.Breakdowns          `json:"breakdowns"`
	Funnel     []analytics.FunnelStep        `json:"funnel"`
	Referrers  analytics.ReferrerAttribution `json:"referrers"`
	Engagement analytics.Engagement          `json:"engagement"`

	TopListings    []analytics.ListingRollup  `json:"top_listings"`
	TopSearchTerms []analytics.SearchTerm     `json:"top_search_terms"`
	TopCategories  []analytics.CategoryRollup `json:"top_categories"`

	Warnings []Warning `json:"warnings"`
	Stale    bool      `json:"stale"`
}

// emptySnapshot returns a snapshot whose every section holds its default, with
// non-nil slices so the JSON shape is stable.
func emptySnapshot(tf *timeframe.TimeFrame, generatedAt time.Time) *Snapshot {
	return &Snapshot{
		Range:       tf.Range,
		BucketSize:  tf.BucketSize,
		From:        tf.From,
		To:          tf.To,
		GeneratedAt: generatedAt,
		Traffic:     []analytics.TrafficPoint{},
		NewListings: []timeframe.DateStat{},
		Breakdowns: analytics.Breakdowns{
			Countries:        []analytics.BreakdownRow{},
			Devices:          []analytics.BreakdownRow{},
			OperatingSystems: []analytics.BreakdownRow{},
		},
		Funnel:         []analytics.FunnelStep{},
		Referrers:      analytics.ReferrerAttribution{Rows: []analytics.ReferrerRow{}},
		Engagement:     analytics.Engagement{PeakHours: []analytics.PeakHour{}},
		TopListings:    []analytics.ListingRollup{},
		TopSearchTerms: []analytics.SearchTerm{},
		TopCategories:  []analytics.CategoryRollup{},
		Warnings:       []Warning{},
	}
}

// HasWarning reports whether section failed in this snapshot.
func (s *Snapshot) HasWarning(section string) bool {
	for _, w := range s.Warnings {
		if w.Section == section {
			return true
		}
	}
	return false
}
