package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"listingpulse/internal/analytics"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
	"listingpulse/internal/pkg/async"
	"listingpulse/internal/timeframe"
)

const (
	defaultWorkers    = 8
	defaultLiveWindow = 5 * time.Minute
)

type Options struct {
	Workers    int
	LiveWindow time.Duration
	Clock      timeframe.TimeProvider
}

// Builder computes snapshots straight from the event tables.
type Builder struct {
	db         *gorm.DB
	logger     *slog.Logger
	workers    int
	liveWindow time.Duration
	clock      timeframe.TimeProvider
}

func NewBuilder(db *gorm.DB, logger *slog.Logger, opts Options) *Builder {
	b := &Builder{
		db:         db,
		logger:     logger,
		workers:    opts.Workers,
		liveWindow: opts.LiveWindow,
		clock:      opts.Clock,
	}
	if b.workers <= 0 {
		b.workers = defaultWorkers
	}
	if b.liveWindow <= 0 {
		b.liveWindow = defaultLiveWindow
	}
	if b.clock == nil {
		b.clock = &timeframe.DefaultTimeProvider{}
	}
	return b
}

// sectionInput is shared read-only by every section of one build. View rows
// and their listings are loaded at most once, by whichever section asks first.
type sectionInput struct {
	db    *gorm.DB
	tf    *timeframe.TimeFrame
	pool  *analytics.VisitorPool
	views func() ([]events.ConversionEvent, error)
	known func() (map[uint]listings.Listing, error)
}

type funnelSection struct {
	steps      []analytics.FunnelStep
	totalViews int
}

func newSectionInput(ctx context.Context, db *gorm.DB, tf *timeframe.TimeFrame, pool *analytics.VisitorPool) *sectionInput {
	in := &sectionInput{db: db, tf: tf, pool: pool}
	in.views = sync.OnceValues(func() ([]events.ConversionEvent, error) {
		return events.LoadConversions(ctx, db, events.ConversionFilter{
			Kind: events.ConversionKindView,
			From: tf.From,
			To:   tf.To,
		})
	})
	in.known = sync.OnceValues(func() (map[uint]listings.Listing, error) {
		views, err := in.views()
		if err != nil {
			return nil, err
		}
		return listings.FindByIDs(ctx, db, analytics.ListingIDs(views, pool.Clicks))
	})
	return in
}

func (in *sectionInput) tasks() []async.Task {
	return []async.Task{
		{
			Name: SectionTraffic,
			Execute: func(ctx context.Context) (any, error) {
				return analytics.TrafficSeries(in.pool, in.tf), nil
			},
		},
		{
			Name: SectionNewListings,
			Execute: func(ctx context.Context) (any, error) {
				created, err := listings.ListCreatedBetween(ctx, in.db, in.tf.From, in.tf.To)
				if err != nil {
					return nil, err
				}
				return analytics.NewListingsSeries(created, in.tf), nil
			},
		},
		{
			Name: SectionEngagement,
			Execute: func(ctx context.Context) (any, error) {
				return analytics.ComputeEngagement(in.pool), nil
			},
		},
		{
			Name: SectionBreakdowns,
			Execute: func(ctx context.Context) (any, error) {
				return analytics.ComputeBreakdowns(in.pool), nil
			},
		},
		{
			Name: SectionReferrers,
			Execute: func(ctx context.Context) (any, error) {
				return analytics.AttributeReferrers(in.pool), nil
			},
		},
		{
			Name: SectionFunnel,
			Execute: func(ctx context.Context) (any, error) {
				views, err := in.views()
				if err != nil {
					return nil, err
				}
				return funnelSection{
					steps:      analytics.Funnel(in.pool.UniqueVisitors, views, in.pool.Clicks),
					totalViews: len(views),
				}, nil
			},
		},
		{
			Name: SectionTopListings,
			Execute: func(ctx context.Context) (any, error) {
				views, err := in.views()
				if err != nil {
					return nil, err
				}
				known, err := in.known()
				if err != nil {
					return nil, err
				}
				return analytics.TopListings(views, in.pool.Clicks, known), nil
			},
		},
		{
			Name: SectionTopCategories,
			Execute: func(ctx context.Context) (any, error) {
				views, err := in.views()
				if err != nil {
					return nil, err
				}
				known, err := in.known()
				if err != nil {
					return nil, err
				}
				return analytics.TopCategories(views, in.pool.Clicks, known), nil
			},
		},
		{
			Name: SectionSearchTerms,
			Execute: func(ctx context.Context) (any, error) {
				return analytics.TopSearchTerms(in.pool), nil
			},
		},
	}
}

// Build computes the snapshot of r. Only a visitor pool failure is returned;
// a failed section is logged, left at its default and listed in Warnings.
func (b *Builder) Build(ctx context.Context, r timeframe.Range) (*Snapshot, error) {
	started := time.Now()
	now := b.clock.Now()
	tf := timeframe.NewTimeFrame(r, now)

	pool, err := analytics.BuildVisitorPool(ctx, b.db, tf.From, tf.To)
	if err != nil {
		return nil, fmt.Errorf("build %s snapshot: %w", r, err)
	}

	snap := emptySnapshot(tf, now)
	snap.UniqueVisitors = pool.UniqueVisitors
	snap.PageViews = pool.PageViews()
	snap.BotsFiltered = pool.BotsFiltered
	snap.TotalClicks = len(pool.Clicks)
	snap.LiveVisitors = pool.LiveVisitors(now.Add(-b.liveWindow))

	in := newSectionInput(ctx, b.db, tf, pool)
	results := async.NewPool(b.workers).Execute(ctx, in.tasks())

	c := &collector{logger: b.logger, snapshot: snap, results: results}
	snap.Traffic = sectionResult(c, SectionTraffic, snap.Traffic)
	snap.NewListings = sectionResult(c, SectionNewListings, snap.NewListings)
	snap.Engagement = sectionResult(c, SectionEngagement, snap.Engagement)
	snap.Breakdowns = sectionResult(c, SectionBreakdowns, snap.Breakdowns)
	snap.Referrers = sectionResult(c, SectionReferrers, snap.Referrers)
	funnel := sectionResult(c, SectionFunnel, funnelSection{steps: snap.Funnel})
	snap.Funnel, snap.TotalViews = funnel.steps, funnel.totalViews
	snap.TopListings = sectionResult(c, SectionTopListings, snap.TopListings)
	snap.TopCategories = sectionResult(c, SectionTopCategories, snap.TopCategories)
	snap.TopSearchTerms = sectionResult(c, SectionSearchTerms, snap.TopSearchTerms)

	b.logger.Debug("Dashboard snapshot built",
		slog.String("range", string(r)),
		slog.Int("unique_visitors", snap.UniqueVisitors),
		slog.Int("warnings", len(snap.Warnings)),
		slog.Duration("duration", time.Since(started)))

	return snap, nil
}

type collector struct {
	logger   *slog.Logger
	snapshot *Snapshot
	results  map[string]async.Result
}

func (c *collector) fail(section string, err error) {
	c.logger.Error("Dashboard section failed",
		slog.String("section", section),
		slog.String("range", string(c.snapshot.Range)),
		slog.Any("error", err))
	c.snapshot.Warnings = append(c.snapshot.Warnings, Warning{Section: section, Message: err.Error()})
}

// sectionResult returns the typed output of section, or fallback when the
// section failed, panicked or never ran.
func sectionResult[T any](c *collector, section string, fallback T) T {
	result, ok := c.results[section]
	if !ok {
		c.fail(section, fmt.Errorf("section did not run"))
		return fallback
	}
	if result.Err != nil {
		c.fail(section, result.Err)
		return fallback
	}
	data, ok := result.Data.(T)
	if !ok {
		c.fail(section, fmt.Errorf("unexpected result type %T", result.Data))
		return fallback
	}
	return data
}
