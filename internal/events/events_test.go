package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingpulse/internal/events"
	"listingpulse/internal/settings"
	"listingpulse/internal/testsupport"
	"listingpulse/internal/visitors"
)

var base = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestCollectTraffic(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("normalizes input", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		event, err := events.CollectTraffic(dbManager, logger, &events.CollectTrafficInput{
			IPAddress:   " 203.0.113.4 ",
			UserAgent:   testsupport.DesktopUserAgent,
			ReferrerURL: " https://www.google.com/ ",
			CountryCode: "us",
			Path:        "programs/acme",
			Timestamp:   base.In(time.FixedZone("CET", 3600)),
		})
		require.NoError(t, err)
		require.NotNil(t, event)

		assert.Equal(t, "203.0.113.4", event.IPAddress)
		assert.Equal(t, "https://www.google.com/", event.ReferrerURL)
		assert.Equal(t, "US", event.CountryCode)
		assert.Equal(t, "/programs/acme", event.Path)
		assert.Equal(t, time.UTC, event.Timestamp.Location())
		assert.True(t, base.Equal(event.Timestamp))
	})

	t.Run("defaults path and timestamp", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		before := time.Now().UTC().Add(-time.Second)
		event, err := events.CollectTraffic(dbManager, logger, &events.CollectTrafficInput{IPAddress: "203.0.113.4"})
		require.NoError(t, err)
		assert.Equal(t, "/", event.Path)
		assert.True(t, event.Timestamp.After(before))
	})

	t.Run("drops excluded addresses", func(t *testing.T) {
		testsupport.CleanAllTables(db)
		require.NoError(t, settings.SetupDefaultSettings(db))
		require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "198.51.100.1"))
		t.Cleanup(func() { _ = settings.UpdateSetting(db, settings.KeyExcludedIPs, "") })

		event, err := events.CollectTraffic(dbManager, logger, &events.CollectTrafficInput{IPAddress: "198.51.100.1"})
		require.NoError(t, err)
		assert.Nil(t, event)

		var count int64
		require.NoError(t, db.Model(&events.TrafficEvent{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestCollectConversion(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	t.Run("upper-cases kind and derives visitor key", func(t *testing.T) {
		testsupport.CleanAllTables(db)

		event, err := events.CollectConversion(dbManager, logger, &events.CollectConversionInput{
			Kind:      "click",
			ListingID: 5,
			IPAddress: "203.0.113.9",
			UserAgent: testsupport.MobileUserAgent,
			Timestamp: base,
		})
		require.NoError(t, err)
		assert.Equal(t, events.ConversionKindClick, event.Kind)
		assert.Equal(t, visitors.HashIdentity("203.0.113.9", testsupport.MobileUserAgent), event.VisitorKey)
	})

	t.Run("fingerprint becomes the visitor key", func(t *testing.T) {
		event, err := events.CollectConversion(dbManager, logger, &events.CollectConversionInput{
			Kind:        events.ConversionKindView,
			ListingID:   5,
			Fingerprint: "fp-1",
			IPAddress:   "203.0.113.9",
		})
		require.NoError(t, err)
		assert.Equal(t, "fp-1", event.VisitorKey)
	})

	tests := []struct {
		name  string
		input events.CollectConversionInput
		want  error
	}{
		{"unknown kind", events.CollectConversionInput{Kind: "SIGNUP", ListingID: 1}, events.ErrInvalidKind},
		{"empty kind", events.CollectConversionInput{ListingID: 1}, events.ErrInvalidKind},
		{"missing listing", events.CollectConversionInput{Kind: events.ConversionKindView}, events.ErrMissingListing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := events.CollectConversion(dbManager, logger, &tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestQueries(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)
	ctx := context.Background()

	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.1", At: base.Add(-48 * time.Hour)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.2", At: base.Add(-time.Hour)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.3", At: base.Add(-2 * time.Hour)})

	testsupport.CreateConversion(t, db, events.ConversionKindView, 1, "a", base.Add(-time.Hour))
	testsupport.CreateConversion(t, db, events.ConversionKindView, 1, "a", base.Add(-50*time.Minute))
	testsupport.CreateConversion(t, db, events.ConversionKindView, 1, "b", base.Add(-40*time.Minute))
	testsupport.CreateConversion(t, db, events.ConversionKindClick, 1, "a", base.Add(-30*time.Minute))
	testsupport.CreateConversion(t, db, events.ConversionKindClick, 1, "a", base.Add(-20*time.Minute))
	testsupport.CreateConversion(t, db, events.ConversionKindView, 2, "c", base.Add(-72*time.Hour))

	t.Run("LoadTraffic is ordered and bounded", func(t *testing.T) {
		rows, err := events.LoadTraffic(ctx, db, base.Add(-24*time.Hour), base)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "203.0.113.3", rows[0].IPAddress)
		assert.Equal(t, "203.0.113.2", rows[1].IPAddress)
	})

	t.Run("LoadConversions filters by kind and listing", func(t *testing.T) {
		views, err := events.LoadConversions(ctx, db, events.ConversionFilter{
			Kind: events.ConversionKindView,
			From: base.Add(-7 * 24 * time.Hour),
			To:   base,
		})
		require.NoError(t, err)
		assert.Len(t, views, 4)

		clicks, err := events.LoadConversions(ctx, db, events.ConversionFilter{
			Kind:      events.ConversionKindClick,
			From:      base.Add(-24 * time.Hour),
			To:        base,
			ListingID: 2,
		})
		require.NoError(t, err)
		assert.Empty(t, clicks)
	})

	t.Run("CountListingEngagement counts distinct viewers and raw clicks", func(t *testing.T) {
		engagement, err := events.CountListingEngagement(ctx, db, base.Add(-24*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, events.ListingEngagement{ListingID: 1, UniqueViews: 2, OutboundClicks: 2}, engagement[1])
		_, ok := engagement[2]
		assert.False(t, ok)
	})

	t.Run("DeleteTrafficBefore works in batches", func(t *testing.T) {
		deleted, err := events.DeleteTrafficBefore(db, base, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		deleted, err = events.DeleteTrafficBefore(db, base, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})

	t.Run("DeleteConversionsBefore keeps newer rows", func(t *testing.T) {
		deleted, err := events.DeleteConversionsBefore(db, base.Add(-24*time.Hour), 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
	})
}
