package analytics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"listingpulse/internal/events"
	"listingpulse/internal/pkg/botfilter"
	"listingpulse/internal/visitors"
)

// Visit is a bot-filtered traffic row with its resolved identity.
type Visit struct {
	Identity    string
	Timestamp   time.Time
	UserAgent   string
	ReferrerURL string
	CountryCode string
	Path        string
}

// VisitorPool is the single source of per-range visitor counts. It is built
// once per snapshot and shared read-only by every aggregator.
type VisitorPool struct {
	From time.Time
	To   time.Time

	Visits []Visit
	// Clicks holds every CLICK conversion of the range, including clicks from
	// visitors absent from Visits.
	Clicks []events.ConversionEvent

	UniqueVisitors int
	BotsFiltered   int

	identities identitySet
}

// BuildVisitorPool loads the traffic and CLICK rows of [from, to] and builds
// the pool. Failure here makes the whole snapshot unavailable.
func BuildVisitorPool(ctx context.Context, db *gorm.DB, from, to time.Time) (*VisitorPool, error) {
	traffic, err := events.LoadTraffic(ctx, db, from, to)
	if err != nil {
		return nil, fmt.Errorf("build visitor pool: %w", err)
	}

	clicks, err := events.LoadConversions(ctx, db, events.ConversionFilter{
		Kind: events.ConversionKindClick,
		From: from,
		To:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("build visitor pool: %w", err)
	}

	return NewVisitorPool(from, to, traffic, clicks, botfilter.Default()), nil
}

// NewVisitorPool drops rows classified as bots and resolves identities once.
func NewVisitorPool(from, to time.Time, traffic []events.TrafficEvent, clicks []events.ConversionEvent, filter *botfilter.Filter) *VisitorPool {
	pool := &VisitorPool{
		From:       from,
		To:         to,
		Visits:     make([]Visit, 0, len(traffic)),
		Clicks:     clicks,
		identities: make(identitySet),
	}

	for _, row := range traffic {
		if filter.IsBot(row.UserAgent) {
			pool.BotsFiltered++
			continue
		}

		identity := visitors.Identity(row.Fingerprint, row.IPAddress, row.UserAgent)
		pool.identities.add(identity)
		pool.Visits = append(pool.Visits, Visit{
			Identity:    identity,
			Timestamp:   row.Timestamp,
			UserAgent:   row.UserAgent,
			ReferrerURL: row.ReferrerURL,
			CountryCode: row.CountryCode,
			Path:        row.Path,
		})
	}

	pool.UniqueVisitors = len(pool.identities)
	return pool
}

// Has reports whether identity appears in the pool.
func (p *VisitorPool) Has(identity string) bool {
	_, ok := p.identities[identity]
	return ok
}

// PageViews is the number of bot-filtered traffic rows.
func (p *VisitorPool) PageViews() int {
	return len(p.Visits)
}

// LiveVisitors counts distinct identities seen at or after since.
func (p *VisitorPool) LiveVisitors(since time.Time) int {
	live := make(identitySet)
	for _, v := range p.Visits {
		if !v.Timestamp.Before(since) {
			live.add(v.Identity)
		}
	}
	return len(live)
}
