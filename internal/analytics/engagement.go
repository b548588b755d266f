package analytics

import (
	"sort"
	"time"
)

// MaxSessionDuration caps the span attributed to one identity.
const MaxSessionDuration = 30 * time.Minute

// PeakHoursLimit is the number of hours reported by ComputeEngagement.
const PeakHoursLimit = 5

type PeakHour struct {
	Hour     int `json:"hour"`
	Visitors int `json:"visitors"`
}

type Engagement struct {
	BounceRate        int        `json:"bounce_rate"`
	AvgSessionSeconds int        `json:"avg_session_seconds"`
	ReturnVisitorRate int        `json:"return_visitor_rate"`
	PeakHours         []PeakHour `json:"peak_hours"`
	BouncedVisitors   int        `json:"bounced_visitors"`
	ReturningVisitors int        `json:"returning_visitors"`
}

type span struct {
	first, last time.Time
	rows        int
}

// ComputeEngagement derives session metrics from the pool. Bounce and return
// rates use pool.UniqueVisitors as denominator.
func ComputeEngagement(pool *VisitorPool) Engagement {
	clickers := make(identitySet)
	for _, click := range pool.Clicks {
		clickers.add(click.VisitorKey)
	}

	spans := make(map[string]*span)
	hourly := make(map[int]identitySet)
	for _, v := range pool.Visits {
		s, ok := spans[v.Identity]
		if !ok {
			s = &span{}
			spans[v.Identity] = s
		}
		s.rows++

		// Zero timestamps still count the visitor but never widen a session.
		if v.Timestamp.IsZero() {
			continue
		}
		if s.first.IsZero() || v.Timestamp.Before(s.first) {
			s.first = v.Timestamp
		}
		if v.Timestamp.After(s.last) {
			s.last = v.Timestamp
		}
		hour := v.Timestamp.UTC().Hour()
		if hourly[hour] == nil {
			hourly[hour] = make(identitySet)
		}
		hourly[hour].add(v.Identity)
	}

	var e Engagement
	var total time.Duration
	for identity, s := range spans {
		if _, clicked := clickers[identity]; !clicked {
			e.BouncedVisitors++
		}
		if s.rows > 1 {
			e.ReturningVisitors++
		}
		total += min(s.last.Sub(s.first), MaxSessionDuration)
	}

	e.BounceRate = percentage(e.BouncedVisitors, pool.UniqueVisitors)
	e.ReturnVisitorRate = percentage(e.ReturningVisitors, pool.UniqueVisitors)
	if len(spans) > 0 {
		e.AvgSessionSeconds = int(total / time.Duration(len(spans)) / time.Second)
	}
	e.PeakHours = peakHours(hourly)
	return e
}

func peakHours(hourly map[int]identitySet) []PeakHour {
	hours := make([]PeakHour, 0, len(hourly))
	for hour, set := range hourly {
		hours = append(hours, PeakHour{Hour: hour, Visitors: len(set)})
	}
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].Visitors != hours[j].Visitors {
			return hours[i].Visitors > hours[j].Visitors
		}
		return hours[i].Hour < hours[j].Hour
	})
	if len(hours) > PeakHoursLimit {
		hours = hours[:PeakHoursLimit]
	}
	return hours
}
