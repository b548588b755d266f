package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/dashboard"
	"listingpulse/internal/testsupport"
	"listingpulse/internal/timeframe"
)

type fakeBuilder struct {
	calls atomic.Int32
	delay time.Duration
	mu    sync.Mutex
	err   error
}

func (f *fakeBuilder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeBuilder) Build(ctx context.Context, r timeframe.Range) (*dashboard.Snapshot, error) {
	n := f.calls.Add(1)
	time.Sleep(f.delay)

	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &dashboard.Snapshot{Range: r, UniqueVisitors: int(n)}, nil
}

func TestCacheServesFreshSnapshot(t *testing.T) {
	clock := &timeframe.FixedTimeProvider{Time: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	builder := &fakeBuilder{}
	cache := dashboard.NewCache(builder, testsupport.GetLogger(), 30*time.Second, clock)

	first, err := cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), builder.calls.Load())

	t.Run("ranges are cached independently", func(t *testing.T) {
		snap, err := cache.Get(context.Background(), timeframe.Range7d)
		require.NoError(t, err)
		assert.Equal(t, timeframe.Range7d, snap.Range)
		assert.Equal(t, int32(2), builder.calls.Load())
	})

	t.Run("rebuilds after the ttl", func(t *testing.T) {
		clock.Time = clock.Time.Add(31 * time.Second)
		snap, err := cache.Get(context.Background(), timeframe.Range24h)
		require.NoError(t, err)
		assert.NotSame(t, first, snap)
		assert.Equal(t, int32(3), builder.calls.Load())
	})
}

func TestCacheSingleFlight(t *testing.T) {
	builder := &fakeBuilder{delay: 50 * time.Millisecond}
	cache := dashboard.NewCache(builder, testsupport.GetLogger(), time.Minute, nil)

	const callers = 20
	var wg sync.WaitGroup
	start := make(chan struct{})
	snapshots := make([]*dashboard.Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			snap, err := cache.Get(context.Background(), timeframe.Range24h)
			assert.NoError(t, err)
			snapshots[i] = snap
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), builder.calls.Load())
	for _, snap := range snapshots {
		assert.Same(t, snapshots[0], snap)
	}
}

func TestCacheStaleFallback(t *testing.T) {
	clock := &timeframe.FixedTimeProvider{Time: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	builder := &fakeBuilder{}
	cache := dashboard.NewCache(builder, testsupport.GetLogger(), 30*time.Second, clock)

	good, err := cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)

	builder.fail(errors.New("database is locked"))
	clock.Time = clock.Time.Add(time.Minute)

	stale, err := cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, good.UniqueVisitors, stale.UniqueVisitors)
	assert.False(t, good.Stale, "cached snapshot is not modified")

	t.Run("unavailable without a prior snapshot", func(t *testing.T) {
		_, err := cache.Get(context.Background(), timeframe.Range30d)
		require.Error(t, err)
		assert.ErrorIs(t, err, dashboard.ErrAnalyticsUnavailable)
		assert.Contains(t, err.Error(), "database is locked")
	})
}

func TestCacheInvalidate(t *testing.T) {
	builder := &fakeBuilder{}
	cache := dashboard.NewCache(builder, testsupport.GetLogger(), time.Hour, nil)

	_, err := cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), timeframe.Range7d)
	require.NoError(t, err)

	cache.Invalidate(timeframe.Range24h)
	_, err = cache.Get(context.Background(), timeframe.Range24h)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), timeframe.Range7d)
	require.NoError(t, err)
	assert.Equal(t, int32(3), builder.calls.Load())

	cache.Invalidate()
	_, err = cache.Get(context.Background(), timeframe.Range7d)
	require.NoError(t, err)
	assert.Equal(t, int32(4), builder.calls.Load())
}
