package analytics

import (
	"math"
	"sort"

	"listingpulse/internal/pkg/referrers"
)

// ReferrerRow is one source of the referrer table.
type ReferrerRow struct {
	Source   string  `json:"source"`
	Domain   *string `json:"domain"`
	Visitors int     `json:"visitors"`
	Clicks   int     `json:"clicks"`
	CTR      float64 `json:"ctr"`
}

type sourceStats struct {
	visitors identitySet
	clicks   int
	domain   *string
}

// ReferrerAttribution is the referrer table plus the click totals it could
// not attribute to a pool visitor.
type ReferrerAttribution struct {
	Rows               []ReferrerRow `json:"rows"`
	AttributedClicks   int           `json:"attributed_clicks"`
	UnattributedClicks int           `json:"unattributed_clicks"`
}

// AttributeReferrers classifies every pool visit and attributes each CLICK to
// the last source seen for its visitor. Pool visits are in timestamp order.
func AttributeReferrers(pool *VisitorPool) ReferrerAttribution {
	stats := make(map[string]*sourceStats)
	lastSource := make(map[string]string)

	for _, v := range pool.Visits {
		source := referrers.Classify(v.ReferrerURL)
		s, ok := stats[source.Name]
		if !ok {
			s = &sourceStats{visitors: make(identitySet), domain: source.Domain}
			stats[source.Name] = s
		}
		s.visitors.add(v.Identity)
		lastSource[v.Identity] = source.Name
	}

	var result ReferrerAttribution
	for _, click := range pool.Clicks {
		name, ok := lastSource[click.VisitorKey]
		if !ok {
			result.UnattributedClicks++
			continue
		}
		stats[name].clicks++
		result.AttributedClicks++
	}

	result.Rows = make([]ReferrerRow, 0, len(stats))
	for name, s := range stats {
		result.Rows = append(result.Rows, ReferrerRow{
			Source:   name,
			Domain:   s.domain,
			Visitors: len(s.visitors),
			Clicks:   s.clicks,
			CTR:      clickThroughRate(s.clicks, len(s.visitors)),
		})
	}
	sort.Slice(result.Rows, func(i, j int) bool {
		if result.Rows[i].Visitors != result.Rows[j].Visitors {
			return result.Rows[i].Visitors > result.Rows[j].Visitors
		}
		return result.Rows[i].Source < result.Rows[j].Source
	})
	return result
}

// clickThroughRate is clicks per visitor as a percentage with one decimal.
func clickThroughRate(clicks, visitors int) float64 {
	if visitors == 0 {
		return 0
	}
	return math.Round(float64(clicks)/float64(visitors)*1000) / 10
}
