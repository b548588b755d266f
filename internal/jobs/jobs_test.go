package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/config"
	"listingpulse/internal/events"
	"listingpulse/internal/jobs"
	"listingpulse/internal/listings"
	"listingpulse/internal/testsupport"
	"listingpulse/internal/timeframe"
)

func TestCleanupJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	now := time.Now().UTC()
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{At: now.AddDate(0, 0, -100)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{At: now.AddDate(0, 0, -91)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{At: now.AddDate(0, 0, -10)})
	testsupport.CreateConversion(t, db, events.ConversionKindView, 1, "a", now.AddDate(0, 0, -95))
	testsupport.CreateConversion(t, db, events.ConversionKindClick, 1, "a", now.Add(-time.Hour))

	job := jobs.NewCleanupJob(dbManager, logger, &config.Config{RawEventsRetentionDays: 90})
	require.NoError(t, job.Run(context.Background()))

	var traffic, conversions int64
	require.NoError(t, db.Model(&events.TrafficEvent{}).Count(&traffic).Error)
	require.NoError(t, db.Model(&events.ConversionEvent{}).Count(&conversions).Error)
	assert.Equal(t, int64(1), traffic)
	assert.Equal(t, int64(1), conversions)

	t.Run("zero retention keeps everything", func(t *testing.T) {
		testsupport.CreateTrafficEvent(t, db, testsupport.Visit{At: now.AddDate(-2, 0, 0)})
		job := jobs.NewCleanupJob(dbManager, logger, &config.Config{RawEventsRetentionDays: 0})
		require.NoError(t, job.Run(context.Background()))

		require.NoError(t, db.Model(&events.TrafficEvent{}).Count(&traffic).Error)
		assert.Equal(t, int64(2), traffic)
	})
}

func TestRescoreJob(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	listing := testsupport.CreateTestListing(t, db, listings.Listing{
		Name:      "Acme",
		LogoURL:   "https://cdn.example.com/acme.png",
		CreatedAt: now.AddDate(0, 0, -30),
	})
	testsupport.CreateConversion(t, db, events.ConversionKindClick, listing.ID, "a", now.Add(-time.Hour))

	cfg := &config.Config{TrendingWindowDays: 14, RescoreBatchSize: 50}
	job := jobs.NewRescoreJob(dbManager, logger, cfg).WithClock(&timeframe.FixedTimeProvider{Time: now})

	result, err := job.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scored)

	stored, err := listings.GetListing(context.Background(), db, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, stored.TrendingScore)
	require.NotNil(t, stored.ScoreComputedAt)
	assert.True(t, stored.ScoreComputedAt.Equal(now))

	assert.NoError(t, job.Run(context.Background()))
}

func TestSchedulerStartStop(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)

	s, err := jobs.NewScheduler(dbManager, logger, &config.Config{
		RescoreSchedule:    "@every 1h",
		TrendingWindowDays: 14,
	})
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start())

	s.Stop()
	assert.False(t, s.IsRunning())
}
