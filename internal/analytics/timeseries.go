package analytics

import (
	"time"

	"listingpulse/internal/timeframe"
)

// TrafficPoint is one bucket of the traffic chart.
type TrafficPoint struct {
	Key       string `json:"key"`
	Visitors  int    `json:"visitors"`
	PageViews int    `json:"page_views"`
	Clicks    int    `json:"clicks"`
}

type bucket struct {
	visitors  identitySet
	pageViews int
	clicks    int
}

// TrafficSeries buckets the pool by tf and fills every step from tf.From
// through tf.To. Rows with a zero timestamp are skipped.
func TrafficSeries(pool *VisitorPool, tf *timeframe.TimeFrame) []TrafficPoint {
	buckets := make(map[string]*bucket)
	get := func(key string) *bucket {
		b, ok := buckets[key]
		if !ok {
			b = &bucket{visitors: make(identitySet)}
			buckets[key] = b
		}
		return b
	}

	for _, v := range pool.Visits {
		key := tf.Key(v.Timestamp)
		if key == "" {
			continue
		}
		b := get(key)
		b.visitors.add(v.Identity)
		b.pageViews++
	}

	for _, click := range pool.Clicks {
		key := tf.Key(click.Timestamp)
		if key == "" {
			continue
		}
		get(key).clicks++
	}

	keys := tf.Keys()
	points := make([]TrafficPoint, len(keys))
	for i, key := range keys {
		points[i] = TrafficPoint{Key: key}
		if b, ok := buckets[key]; ok {
			points[i].Visitors = len(b.visitors)
			points[i].PageViews = b.pageViews
			points[i].Clicks = b.clicks
		}
	}
	return points
}

// NewListingsSeries buckets listing creation times with the same keys and
// gap filling as the traffic chart.
func NewListingsSeries(createdAt []time.Time, tf *timeframe.TimeFrame) []timeframe.DateStat {
	grouped := make(map[string]int)
	for _, ts := range createdAt {
		if key := tf.Key(ts); key != "" {
			grouped[key]++
		}
	}
	return tf.BuildTimeSeriesPoints(grouped)
}
