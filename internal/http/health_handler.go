package http

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
}

// HealthIndexAction pings the database. A failed ping reports "degraded"
// with 503 so load balancers take the instance out of rotation.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{Status: "ok", Timestamp: time.Now().UTC(), DBStatus: "ok"}

	if err := ping(ctx); err != nil {
		ctx.Logger.Error("Database health check failed", slog.Any("error", err))
		health.Status = "degraded"
		health.DBStatus = "error"
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return ctx.JSON(health)
}

func ping(ctx *cartridge.Context) error {
	db := ctx.DBManager.GetConnection()
	if db == nil {
		return fiber.ErrServiceUnavailable
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx.UserContext())
}
