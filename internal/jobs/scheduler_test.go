package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/config"
)

func TestNewSchedulerRejectsInvalidSchedule(t *testing.T) {
	_, err := NewScheduler(nil, quietLogger(), &config.Config{RescoreSchedule: "every now and then"})
	assert.ErrorContains(t, err, "invalid rescore schedule")
}

func TestExecuteJobSafely(t *testing.T) {
	s, err := NewScheduler(nil, quietLogger(), &config.Config{RescoreSchedule: "@every 15m"})
	require.NoError(t, err)

	t.Run("recovers panics", func(t *testing.T) {
		assert.NotPanics(t, func() {
			s.executeJobSafely("panicky", func(ctx context.Context) error { panic("boom") })
		})
		assert.Empty(t, s.running)
	})

	t.Run("logs errors", func(t *testing.T) {
		ran := false
		s.executeJobSafely("failing", func(ctx context.Context) error {
			ran = true
			return errors.New("failed")
		})
		assert.True(t, ran)
	})

	t.Run("skips overlapping runs of the same job", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.executeJobSafely("slow", func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			})
		}()
		<-started

		second := false
		s.executeJobSafely("slow", func(ctx context.Context) error {
			second = true
			return nil
		})
		other := false
		s.executeJobSafely("other", func(ctx context.Context) error {
			other = true
			return nil
		})

		close(release)
		wg.Wait()
		assert.False(t, second)
		assert.True(t, other)
	})
}
