package analytics

import (
	"math"

	"listingpulse/internal/events"
)

const (
	StageVisitors       = "Visitors"
	StageContentViews   = "Content Views"
	StageOutboundClicks = "Outbound Clicks"
)

// FunnelStep is one funnel stage. ConversionRate is relative to the
// previous applicable stage.
type FunnelStep struct {
	Name           string `json:"name"`
	Count          int    `json:"count"`
	ConversionRate int    `json:"conversion_rate"`
	NotApplicable  bool   `json:"not_applicable,omitempty"`
}

type visitorListing struct {
	visitor string
	listing uint
}

// distinctPairs counts distinct (visitor, listing) pairs. A non-zero
// listingID restricts the count to that listing.
func distinctPairs(rows []events.ConversionEvent, listingID uint) int {
	seen := make(map[visitorListing]struct{}, len(rows))
	for _, row := range rows {
		if listingID != 0 && row.ListingID != listingID {
			continue
		}
		seen[visitorListing{visitor: row.VisitorKey, listing: row.ListingID}] = struct{}{}
	}
	return len(seen)
}

// Funnel builds the three-stage site funnel. Stage 1 is the pool's unique
// visitor count; content views may exceed it and are reported as-is.
func Funnel(uniqueVisitors int, views, clicks []events.ConversionEvent) []FunnelStep {
	steps := []FunnelStep{
		{Name: StageVisitors, Count: uniqueVisitors},
		{Name: StageContentViews, Count: distinctPairs(views, 0)},
		{Name: StageOutboundClicks, Count: distinctPairs(clicks, 0)},
	}
	applyConversionRates(steps)
	return steps
}

// ListingFunnel scopes stages 2 and 3 to one listing. A per-listing visitor
// count is not derivable from the pool, so stage 1 is not applicable.
func ListingFunnel(listingID uint, views, clicks []events.ConversionEvent) []FunnelStep {
	steps := []FunnelStep{
		{Name: StageVisitors, NotApplicable: true},
		{Name: StageContentViews, Count: distinctPairs(views, listingID)},
		{Name: StageOutboundClicks, Count: distinctPairs(clicks, listingID)},
	}
	applyConversionRates(steps)
	return steps
}

func applyConversionRates(steps []FunnelStep) {
	var previous *FunnelStep
	for i := range steps {
		step := &steps[i]
		switch {
		case step.NotApplicable:
			continue
		case previous == nil:
			step.ConversionRate = 100
		default:
			step.ConversionRate = conversionRate(step.Count, previous.Count)
		}
		previous = step
	}
}

func conversionRate(current, previous int) int {
	if previous == 0 {
		return 0
	}
	return int(math.Round(float64(current) / float64(previous) * 100))
}
