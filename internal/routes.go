package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "listingpulse/api/v1"
	"listingpulse/internal/config"
	"listingpulse/internal/dashboard"
	"listingpulse/internal/http"
	"listingpulse/internal/http/middleware"
	"listingpulse/internal/jobs"
	"listingpulse/internal/pkg/geoip"
	"listingpulse/internal/timeframe"
)

// collectorCORSConfig lets collectors on any origin post events.
var collectorCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Referrer, User-Agent, X-Forwarded-User-Agent",
}

// RouteDeps are services shared between the HTTP layer and background jobs.
// Nil fields are built from the server's database and config.
type RouteDeps struct {
	Rescore *jobs.RescoreJob
	Clock   timeframe.TimeProvider
}

// MountAppRoutes mounts all application routes using cartridge's route API.
func MountAppRoutes(srv *cartridge.Server) {
	MountAppRoutesWith(srv, RouteDeps{})
}

// MountAppRoutesWith mounts all routes using the given shared services.
func MountAppRoutesWith(srv *cartridge.Server, deps RouteDeps) {
	cfg := config.GetConfig()
	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	geoip.InitLogger(logger)

	if deps.Clock == nil {
		deps.Clock = &timeframe.DefaultTimeProvider{}
	}
	if deps.Rescore == nil {
		deps.Rescore = jobs.NewRescoreJob(srv.GetDBManager(), logger, cfg).WithClock(deps.Clock)
	}

	builder := dashboard.NewBuilder(db, logger, dashboard.Options{
		Workers:    cfg.SnapshotWorkers,
		LiveWindow: cfg.LiveWindow(),
		Clock:      deps.Clock,
	})
	h := &http.Handlers{
		Cache:   dashboard.NewCache(builder, logger, cfg.SnapshotCacheTTL(), deps.Clock),
		Builder: builder,
		Rescore: deps.Rescore,
		Config:  cfg,
		Clock:   deps.Clock,
	}

	// Rate limiting would interfere with tests, so it only runs in production.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	collectorRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	readRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(60),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	collectorConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{collectorRateLimiter},
		CORSConfig:       collectorCORSConfig,
	}

	readConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{readRateLimiter},
	}

	adminConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{middleware.AdminAPIKeyAuth(cfg.AdminAPIKey, logger)},
	}

	noContent := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === HEALTH ===
	srv.Get("/_health", http.HealthIndexAction, readConfig)
	srv.Head("/_health", http.HealthIndexAction, readConfig)

	// === COLLECTOR ROUTES ===
	srv.Post("/x/api/v1/traffic", v1.CreateTrafficHandler, collectorConfig)
	srv.Options("/x/api/v1/traffic", noContent, collectorConfig)
	srv.Post("/x/api/v1/conversions", v1.CreateConversionHandler, collectorConfig)
	srv.Options("/x/api/v1/conversions", noContent, collectorConfig)

	// === READ API ===
	srv.Get("/api/v1/dashboard", h.DashboardAction, readConfig)
	srv.Get("/api/v1/listings", h.ListingsIndexAction, readConfig)
	srv.Get("/api/v1/listings/:id/score", h.ListingScoreAction, readConfig)
	srv.Get("/api/v1/listings/:id/funnel", h.ListingFunnelAction, readConfig)

	// === ADMIN API ===
	srv.Post("/api/v1/admin/rescore", h.RescoreAction, adminConfig)
	srv.Get("/api/v1/admin/settings/excluded-ips", h.ExcludedIPsShowAction, adminConfig)
	srv.Post("/api/v1/admin/settings/excluded-ips", h.ExcludedIPsUpdateAction, adminConfig)
}
