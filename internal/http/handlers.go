// Package http holds the read and admin API handlers.
package http

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"listingpulse/internal/config"
	"listingpulse/internal/dashboard"
	"listingpulse/internal/jobs"
	"listingpulse/internal/timeframe"
)

// Handlers carries the long-lived services shared by every request.
type Handlers struct {
	Cache   *dashboard.Cache
	Builder *dashboard.Builder
	Rescore *jobs.RescoreJob
	Config  *config.Config
	Clock   timeframe.TimeProvider
}

func parseRangeParam(ctx *cartridge.Context) (timeframe.Range, error) {
	return timeframe.ParseRange(ctx.Query("range"))
}

func parseIDParam(ctx *cartridge.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid listing id")
	}
	return uint(id), nil
}

func badRequest(ctx *cartridge.Context, message string) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

func notFound(ctx *cartridge.Context, message string) error {
	return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
}

func internalError(ctx *cartridge.Context, message string, err error) error {
	ctx.Logger.Error(message, slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": message})
}
