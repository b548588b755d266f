package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/events"
)

func TestComputeEngagementSessionDuration(t *testing.T) {
	base := testNow.Add(-2 * time.Hour)

	t.Run("span of rows sharing ip and user agent", func(t *testing.T) {
		pool := newPool([]events.TrafficEvent{
			hit("198.51.100.1", chromeUA, base),
			hit("198.51.100.1", chromeUA, base.Add(600*time.Second)),
			hit("198.51.100.1", chromeUA, base.Add(1200*time.Second)),
		}, nil)

		assert.Equal(t, 1200, ComputeEngagement(pool).AvgSessionSeconds)
	})

	t.Run("span capped at thirty minutes", func(t *testing.T) {
		pool := newPool([]events.TrafficEvent{
			hit("198.51.100.1", chromeUA, base),
			hit("198.51.100.1", chromeUA, base.Add(3600*time.Second)),
		}, nil)

		assert.Equal(t, 1800, ComputeEngagement(pool).AvgSessionSeconds)
	})

	t.Run("single-row visitors contribute zero", func(t *testing.T) {
		pool := newPool([]events.TrafficEvent{
			hit("198.51.100.1", chromeUA, base),
			hit("198.51.100.1", chromeUA, base.Add(600*time.Second)),
			hit("198.51.100.2", chromeUA, base),
		}, nil)

		assert.Equal(t, 300, ComputeEngagement(pool).AvgSessionSeconds)
	})

	t.Run("zero timestamps do not widen the span", func(t *testing.T) {
		pool := newPool([]events.TrafficEvent{
			hit("198.51.100.1", chromeUA, base),
			hit("198.51.100.1", chromeUA, time.Time{}),
			hit("198.51.100.2", chromeUA, time.Time{}),
		}, nil)

		e := ComputeEngagement(pool)
		assert.Equal(t, 0, e.AvgSessionSeconds)
		assert.Equal(t, 2, e.BouncedVisitors)
		require.Len(t, e.PeakHours, 1)
		assert.Equal(t, base.UTC().Hour(), e.PeakHours[0].Hour)
	})
}

func TestComputeEngagementRates(t *testing.T) {
	base := testNow.Add(-2 * time.Hour)
	pool := newPool([]events.TrafficEvent{
		hit("198.51.100.1", chromeUA, base),
		hit("198.51.100.1", chromeUA, base.Add(time.Minute)),
		hit("198.51.100.2", chromeUA, base),
		hit("198.51.100.3", iphoneUA, base),
		hit("198.51.100.4", iphoneUA, base),
	}, []events.ConversionEvent{
		click("198.51.100.1", chromeUA, 1, base.Add(2*time.Minute)),
		click("192.0.2.1", chromeUA, 1, base.Add(2*time.Minute)),
	})

	e := ComputeEngagement(pool)
	assert.Equal(t, 4, pool.UniqueVisitors)
	assert.Equal(t, 3, e.BouncedVisitors)
	assert.Equal(t, 75, e.BounceRate)
	assert.Equal(t, 1, e.ReturningVisitors)
	assert.Equal(t, 25, e.ReturnVisitorRate)
}

func TestComputeEngagementEmptyPool(t *testing.T) {
	e := ComputeEngagement(newPool(nil, nil))
	assert.Equal(t, Engagement{PeakHours: []PeakHour{}}, e)
}

func TestPeakHours(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	var traffic []events.TrafficEvent
	add := func(hour, visitors int) {
		for i := 0; i < visitors; i++ {
			ip := fmt.Sprintf("10.0.%d.%d", hour, i)
			traffic = append(traffic, hit(ip, chromeUA, day.Add(time.Duration(hour)*time.Hour)))
		}
	}
	add(9, 3)
	add(14, 5)
	add(3, 3)
	add(20, 1)
	add(11, 2)
	add(1, 1)

	pool := NewVisitorPool(day, day.Add(24*time.Hour), traffic, nil, nil)
	peaks := ComputeEngagement(pool).PeakHours

	require.Len(t, peaks, 5)
	assert.Equal(t, []PeakHour{
		{Hour: 14, Visitors: 5},
		{Hour: 3, Visitors: 3},
		{Hour: 9, Visitors: 3},
		{Hour: 11, Visitors: 2},
		{Hour: 1, Visitors: 1},
	}, peaks)
}
