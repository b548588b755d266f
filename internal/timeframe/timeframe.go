package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned by ParseRange for unsupported selectors.
var ErrInvalidRange = errors.New("invalid range")

type BucketSize string

const (
	BucketSizeHour BucketSize = "hour"
	BucketSizeDay  BucketSize = "day"
)

// Range is the dashboard range selector.
type Range string

const (
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

// Ranges lists the supported selectors in display order.
var Ranges = []Range{Range24h, Range7d, Range30d}

const (
	hourKeyFormat = "2006-01-02T15"
	dayKeyFormat  = "2006-01-02"
)

// maxPoints guards bucket generation against a runaway loop.
const maxPoints = 1000

type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider reads the system clock in UTC.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider always returns the same instant. Used by tests and the CLI.
type FixedTimeProvider struct {
	Time time.Time
}

func (p *FixedTimeProvider) Now() time.Time {
	return p.Time.UTC()
}

// ParseRange validates a range selector. An empty value defaults to 24h.
func ParseRange(value string) (Range, error) {
	switch Range(strings.ToLower(strings.TrimSpace(value))) {
	case "", Range24h:
		return Range24h, nil
	case Range7d:
		return Range7d, nil
	case Range30d:
		return Range30d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, value)
	}
}

// Lookback returns how far back the range reaches from now.
func (r Range) Lookback() time.Duration {
	switch r {
	case Range7d:
		return 7 * 24 * time.Hour
	case Range30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// BucketSize is hourly for 24h and daily otherwise.
func (r Range) BucketSize() BucketSize {
	if r == Range24h {
		return BucketSizeHour
	}
	return BucketSizeDay
}

// TimeFrame is a resolved range: a window ending at To with a bucket size.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	Range      Range
	BucketSize BucketSize
}

// NewTimeFrame resolves r against now. All times are UTC.
func NewTimeFrame(r Range, now time.Time) *TimeFrame {
	now = now.UTC()
	return &TimeFrame{
		From:       now.Add(-r.Lookback()),
		To:         now,
		Range:      r,
		BucketSize: r.BucketSize(),
	}
}

// Contains reports whether t falls inside [From, To].
func (tf *TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

// Key returns the bucket key for t, or "" for a zero time.
func (tf *TimeFrame) Key(t time.Time) string {
	return BucketKey(t, tf.BucketSize)
}

// BucketKey formats t as `YYYY-MM-DDTHH` for hourly buckets and `YYYY-MM-DD`
// for daily ones. A zero time has no bucket.
func BucketKey(t time.Time, size BucketSize) string {
	if t.IsZero() {
		return ""
	}
	if size == BucketSizeHour {
		return t.UTC().Format(hourKeyFormat)
	}
	return t.UTC().Format(dayKeyFormat)
}

// Keys generates every bucket key from From through To inclusive, one unit
// apart, with no gaps.
func (tf *TimeFrame) Keys() []string {
	current := truncateToBucket(tf.From, tf.BucketSize)
	end := truncateToBucket(tf.To, tf.BucketSize)

	keys := make([]string, 0, 32)
	for !current.After(end) && len(keys) < maxPoints {
		keys = append(keys, BucketKey(current, tf.BucketSize))
		current = step(current, tf.BucketSize)
	}
	return keys
}

// DateStat is a single gap-filled count.
type DateStat struct {
	Date  string
	Count int
}

// BuildTimeSeriesPoints fills every bucket of the frame from the grouped counts,
// emitting zero for bucket keys missing from the input.
func (tf *TimeFrame) BuildTimeSeriesPoints(grouped map[string]int) []DateStat {
	keys := tf.Keys()
	results := make([]DateStat, len(keys))
	for i, key := range keys {
		results[i] = DateStat{Date: key, Count: grouped[key]}
	}
	return results
}

func step(t time.Time, size BucketSize) time.Time {
	if size == BucketSizeHour {
		return t.Add(time.Hour)
	}
	return t.AddDate(0, 0, 1)
}

func truncateToBucket(t time.Time, size BucketSize) time.Time {
	utc := t.UTC()
	year, month, day := utc.Date()
	if size == BucketSizeHour {
		return time.Date(year, month, day, utc.Hour(), 0, 0, 0, time.UTC)
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
