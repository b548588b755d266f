// Package trending computes the composite ranking score of a listing.
//
// Score is pure: for the same Input and evaluation time it always returns
// the same Breakdown, so batch rescoring is reproducible.
package trending

import (
	"math"
	"strings"
	"time"
)

const (
	ViewWeight  = 1
	ClickWeight = 10

	LogoPoints          = 10
	OptionalFieldPoints = 5

	MaxTrustPoints = 10

	NewListingBoost    = 100
	RecentListingBoost = 50
	NewListingAge      = 3 * 24 * time.Hour
	RecentListingAge   = 7 * 24 * time.Hour
)

// AffiliateTiers maps the audience size range of a program to trust points.
var AffiliateTiers = map[string]float64{
	"1-10":     2,
	"11-50":    4,
	"51-200":   6,
	"201-1000": 8,
	"1000+":    10,
}

// PayoutTiers maps the total paid-out range of a program to trust points.
var PayoutTiers = map[string]float64{
	"<1k":      2,
	"1k-10k":   4,
	"10k-50k":  6,
	"50k-250k": 8,
	"250k+":    10,
}

// placeholders never count as a filled profile field. Compared lower-cased.
var placeholders = map[string]struct{}{
	"no description provided.": {},
	"no description provided":  {},
	"n/a":                      {},
	"na":                       {},
	"none":                     {},
	"null":                     {},
	"undefined":                {},
	"tbd":                      {},
	"todo":                     {},
	"coming soon":              {},
	"-":                        {},
}

// Input is everything the score depends on.
type Input struct {
	UniqueViews    int
	OutboundClicks int

	HasLogo        bool
	OptionalFields []string

	AffiliateTier string
	PayoutTier    string

	CreatedAt   time.Time
	ManualBoost float64
}

// Breakdown is the per-component score. Total is their sum.
type Breakdown struct {
	Engagement  float64 `json:"engagement"`
	Quality     float64 `json:"quality"`
	Trust       float64 `json:"trust"`
	Recency     float64 `json:"recency"`
	ManualBoost float64 `json:"manual_boost"`
	Total       float64 `json:"total"`
}

// Score evaluates in at now.
func Score(in Input, now time.Time) Breakdown {
	b := Breakdown{
		Engagement:  Engagement(in.UniqueViews, in.OutboundClicks),
		Quality:     Quality(in.HasLogo, in.OptionalFields),
		Trust:       Trust(in.AffiliateTier, in.PayoutTier),
		Recency:     Recency(in.CreatedAt, now),
		ManualBoost: finite(in.ManualBoost),
	}
	b.Total = b.Engagement + b.Quality + b.Trust + b.Recency + b.ManualBoost
	return b
}

func Engagement(uniqueViews, outboundClicks int) float64 {
	return float64(max(uniqueViews, 0)*ViewWeight + max(outboundClicks, 0)*ClickWeight)
}

func Quality(hasLogo bool, optionalFields []string) float64 {
	points := 0.0
	if hasLogo {
		points += LogoPoints
	}
	for _, field := range optionalFields {
		if IsFilled(field) {
			points += OptionalFieldPoints
		}
	}
	return points
}

// IsFilled reports whether a profile field carries real content.
func IsFilled(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	_, placeholder := placeholders[strings.ToLower(trimmed)]
	return !placeholder
}

// Trust sums both tier lookups and caps the result. Unknown keys add nothing.
func Trust(affiliateTier, payoutTier string) float64 {
	points := tierPoints(AffiliateTiers, affiliateTier) + tierPoints(PayoutTiers, payoutTier)
	return math.Min(points, MaxTrustPoints)
}

func tierPoints(table map[string]float64, key string) float64 {
	return table[strings.ToLower(strings.TrimSpace(key))]
}

// Recency boosts listings by age at now. A zero creation time earns nothing.
func Recency(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0
	}
	age := now.Sub(createdAt)
	switch {
	case age < NewListingAge:
		return NewListingBoost
	case age < RecentListingAge:
		return RecentListingBoost
	default:
		return 0
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
