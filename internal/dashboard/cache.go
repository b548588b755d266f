package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"listingpulse/internal/timeframe"
)

const defaultCacheTTL = 30 * time.Second

// SnapshotBuilder produces a fresh snapshot for a range.
type SnapshotBuilder interface {
	Build(ctx context.Context, r timeframe.Range) (*Snapshot, error)
}

type cacheEntry struct {
	snapshot  *Snapshot
	expiresAt time.Time
}

// Cache serves snapshots per range with a TTL. Concurrent misses for the same
// range share one build. When a build fails the last good snapshot of that
// range is served with Stale set.
type Cache struct {
	builder SnapshotBuilder
	logger  *slog.Logger
	ttl     time.Duration
	clock   timeframe.TimeProvider

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[timeframe.Range]cacheEntry
}

func NewCache(builder SnapshotBuilder, logger *slog.Logger, ttl time.Duration, clock timeframe.TimeProvider) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if clock == nil {
		clock = &timeframe.DefaultTimeProvider{}
	}
	return &Cache{
		builder: builder,
		logger:  logger,
		ttl:     ttl,
		clock:   clock,
		entries: make(map[timeframe.Range]cacheEntry),
	}
}

func (c *Cache) lookup(r timeframe.Range) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[r]
	return e, ok
}

func (c *Cache) fresh(r timeframe.Range) (*Snapshot, bool) {
	e, ok := c.lookup(r)
	if !ok || !c.clock.Now().Before(e.expiresAt) {
		return nil, false
	}
	return e.snapshot, true
}

// Get returns the snapshot of r, building it on a miss. It returns an error
// wrapping ErrAnalyticsUnavailable only when the build fails and no earlier
// snapshot of r exists.
func (c *Cache) Get(ctx context.Context, r timeframe.Range) (*Snapshot, error) {
	if snap, ok := c.fresh(r); ok {
		return snap, nil
	}

	v, err, _ := c.group.Do(string(r), func() (any, error) {
		if snap, ok := c.fresh(r); ok {
			return snap, nil
		}
		// The build outlives a cancelled leader; other callers share it.
		snap, err := c.builder.Build(context.WithoutCancel(ctx), r)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[r] = cacheEntry{snapshot: snap, expiresAt: c.clock.Now().Add(c.ttl)}
		c.mu.Unlock()
		return snap, nil
	})
	if err == nil {
		return v.(*Snapshot), nil
	}

	if last, ok := c.lookup(r); ok {
		c.logger.Warn("Serving stale dashboard snapshot",
			slog.String("range", string(r)),
			slog.Time("generated_at", last.snapshot.GeneratedAt),
			slog.Any("error", err))
		stale := *last.snapshot
		stale.Stale = true
		return &stale, nil
	}

	c.logger.Error("Dashboard snapshot unavailable",
		slog.String("range", string(r)),
		slog.Any("error", err))
	return nil, fmt.Errorf("%w: %w", ErrAnalyticsUnavailable, err)
}

// Invalidate expires the given ranges, or every range when none is given.
// Expired entries remain available as stale fallbacks.
func (c *Cache) Invalidate(ranges ...timeframe.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(ranges) == 0 {
		for r, e := range c.entries {
			e.expiresAt = time.Time{}
			c.entries[r] = e
		}
		return
	}
	for _, r := range ranges {
		if e, ok := c.entries[r]; ok {
			e.expiresAt = time.Time{}
			c.entries[r] = e
		}
	}
}
