package http_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"listingpulse/internal/config"
	"listingpulse/internal/events"
	"listingpulse/internal/listings"
	"listingpulse/internal/settings"
	"listingpulse/internal/testsupport"
)

const testAPIKey = "test-admin-key"

func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	cfg := config.GetConfig()
	previous := cfg.AdminAPIKey
	cfg.AdminAPIKey = testAPIKey
	t.Cleanup(func() { cfg.AdminAPIKey = previous })

	return testsupport.CreateMinimalTestApp(t, db), db
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]any
	if len(raw) > 0 && method != fiber.MethodHead {
		require.NoErrorf(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return resp, decoded
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAPIKey}
}

func TestHealthIndexAction(t *testing.T) {
	app, _ := setupApp(t)

	resp, body := doRequest(t, app, fiber.MethodGet, "/_health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db_status"])

	resp, _ = doRequest(t, app, fiber.MethodHead, "/_health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDashboardAction(t *testing.T) {
	app, db := setupApp(t)

	now := time.Now().UTC()
	listing := testsupport.CreateTestListing(t, db, listings.Listing{Name: "HostForge", Category: "Web Hosting"})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.1", Path: "/", At: now.Add(-2 * time.Hour)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.2", UserAgent: testsupport.MobileUserAgent, At: now.Add(-1 * time.Hour)})
	testsupport.CreateTrafficEvent(t, db, testsupport.Visit{IP: "203.0.113.3", UserAgent: testsupport.BotUserAgent, At: now.Add(-1 * time.Hour)})
	testsupport.CreateConversion(t, db, events.ConversionKindView, listing.ID, "v1", now.Add(-time.Hour))

	t.Run("default range is 24h", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/dashboard", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "24h", body["range"])
		assert.Equal(t, float64(2), body["unique_visitors"])
		assert.Equal(t, float64(1), body["bots_filtered"])
		assert.Equal(t, float64(1), body["total_views"])
		assert.Equal(t, false, body["stale"])
		assert.Len(t, body["traffic"], 25)
		assert.Empty(t, resp.Header.Get("Warning"))
	})

	t.Run("7d range", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/dashboard?range=7d", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "7d", body["range"])
		assert.Len(t, body["traffic"], 8)
	})

	t.Run("rejects unknown range", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/dashboard?range=1y", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})
}

func TestDashboardActionUnavailable(t *testing.T) {
	app, db := setupApp(t)
	require.NoError(t, db.Migrator().DropTable(&events.TrafficEvent{}))
	t.Cleanup(func() { _ = db.AutoMigrate(&events.TrafficEvent{}) })

	resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/dashboard", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "analytics unavailable", body["error"])
}

func TestListingFunnelActionFailure(t *testing.T) {
	app, db := setupApp(t)
	listing := testsupport.CreateTestListing(t, db, listings.Listing{Name: "Broken Funnel"})
	require.NoError(t, db.Migrator().DropTable(&events.ConversionEvent{}))
	t.Cleanup(func() { _ = db.AutoMigrate(&events.ConversionEvent{}) })

	resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/"+itoa(listing.ID)+"/funnel", "", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to compute funnel", body["error"])
}

func TestListingsActions(t *testing.T) {
	app, db := setupApp(t)

	hot := testsupport.CreateTestListing(t, db, listings.Listing{Name: "Hot", TrendingScore: 42, LogoURL: "https://cdn.example/logo.png"})
	testsupport.CreateTestListing(t, db, listings.Listing{Name: "Cold", TrendingScore: 3})
	testsupport.CreateConversion(t, db, events.ConversionKindView, hot.ID, "v1", time.Now().UTC().Add(-time.Hour))
	testsupport.CreateConversion(t, db, events.ConversionKindView, hot.ID, "v2", time.Now().UTC().Add(-time.Hour))

	t.Run("index orders by trending score", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/listings?limit=5", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		items, ok := body["listings"].([]any)
		require.True(t, ok)
		require.Len(t, items, 2)
		assert.Equal(t, "Hot", items[0].(map[string]any)["name"])
		assert.Equal(t, "Cold", items[1].(map[string]any)["name"])
	})

	t.Run("index rejects bad limit", func(t *testing.T) {
		resp, _ := doRequest(t, app, fiber.MethodGet, "/api/v1/listings?limit=zero", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("score breakdown", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/"+itoa(hot.ID)+"/score", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(42), body["stored_score"])

		breakdown, ok := body["breakdown"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(10), breakdown["quality"])
		assert.Greater(t, breakdown["engagement"].(float64), 0.0)
	})

	t.Run("score of missing listing", func(t *testing.T) {
		resp, _ := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/9999/score", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("funnel", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/"+itoa(hot.ID)+"/funnel?range=7d", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		steps, ok := body["steps"].([]any)
		require.True(t, ok)
		require.Len(t, steps, 3)

		visitors, ok := steps[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, visitors["not_applicable"])
		for _, step := range steps[1:] {
			assert.NotContains(t, step.(map[string]any), "not_applicable")
		}
	})

	t.Run("funnel of missing listing", func(t *testing.T) {
		resp, _ := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/9999/funnel", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("funnel with invalid id", func(t *testing.T) {
		resp, _ := doRequest(t, app, fiber.MethodGet, "/api/v1/listings/abc/funnel", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAdminActions(t *testing.T) {
	app, db := setupApp(t)
	require.NoError(t, settings.SetupDefaultSettings(db))
	listing := testsupport.CreateTestListing(t, db, listings.Listing{Name: "Scored", LogoURL: "https://cdn.example/logo.png"})

	t.Run("requires api key", func(t *testing.T) {
		resp, _ := doRequest(t, app, fiber.MethodPost, "/api/v1/admin/rescore", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = doRequest(t, app, fiber.MethodPost, "/api/v1/admin/rescore", "",
			map[string]string{"Authorization": "Bearer wrong"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("rescore stores scores", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/admin/rescore", "", adminHeaders())
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, float64(1), body["scored"])
		assert.Equal(t, float64(0), body["failed"])

		stored, err := listings.GetListing(t.Context(), db, listing.ID)
		require.NoError(t, err)
		assert.NotNil(t, stored.ScoreComputedAt)
		assert.Greater(t, stored.TrendingScore, 0.0)
	})

	t.Run("excluded ips round trip", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/admin/settings/excluded-ips",
			`{"excluded_ips":"203.0.113.5, 2001:db8::1"}`, adminHeaders())
		require.Equal(t, http.StatusOK, resp.StatusCode, body)

		resp, body = doRequest(t, app, fiber.MethodGet, "/api/v1/admin/settings/excluded-ips", "", adminHeaders())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "203.0.113.5, 2001:db8::1", body["excluded_ips"])

		excluded, err := settings.IsIPExcluded("203.0.113.5")
		require.NoError(t, err)
		assert.True(t, excluded)

		require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, ""))
	})

	t.Run("excluded ips rejects invalid addresses", func(t *testing.T) {
		resp, body := doRequest(t, app, fiber.MethodPost, "/api/v1/admin/settings/excluded-ips",
			`{"excluded_ips":"300.1.1.1"}`, adminHeaders())
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
