// Package analytics turns raw traffic and conversion rows into dashboard
// aggregates.
//
// Every per-range visitor count derives from one VisitorPool:
//   - pool.go: bot-filtered, identity-resolved traffic rows plus range clicks
//   - timeseries.go: gap-filled traffic and new-listings charts
//   - engagement.go: bounce, session duration, return rate, peak hours
//   - funnel.go: global and per-listing conversion funnels
//   - referrers.go: source attribution and click-through rates
//   - breakdowns.go: country, device and OS shares
//   - rollups.go: top listings, search terms and categories
package analytics

import (
	"math"
	"sort"
)

// percentage returns round(part / total * 100), or 0 for an empty total.
func percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

type identitySet map[string]struct{}

func (s identitySet) add(identity string) {
	s[identity] = struct{}{}
}

// sortedCounts orders names by count desc, then name asc.
func sortedCounts(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
