package http

import (
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"listingpulse/internal/jobs"
	"listingpulse/internal/settings"
)

// RescoreAction runs a rescoring pass now and reports its result.
func (h *Handlers) RescoreAction(ctx *cartridge.Context) error {
	result, err := h.Rescore.RunNow(ctx.UserContext())
	if errors.Is(err, jobs.ErrRescoreInProgress) {
		return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	body := fiber.Map{
		"scored":      result.Scored,
		"failed":      result.Failed,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if err != nil {
		ctx.Logger.Error("Manual rescore failed", slog.Any("error", err))
		body["error"] = err.Error()
		return ctx.Status(fiber.StatusInternalServerError).JSON(body)
	}

	if h.Cache != nil {
		h.Cache.Invalidate()
	}
	ctx.Logger.Info("Manual rescore completed", slog.Int("scored", result.Scored))
	return ctx.JSON(body)
}

// validateIPList validates a comma-separated list of IP addresses
func validateIPList(ipList string) (bool, string) {
	for _, ip := range strings.Split(ipList, ",") {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if net.ParseIP(ip) == nil {
			return false, "Invalid IP address format: " + ip
		}
	}
	return true, ""
}

type excludedIPsParams struct {
	ExcludedIPs string `json:"excluded_ips"`
}

// ExcludedIPsShowAction returns the IPs dropped at ingestion.
func (h *Handlers) ExcludedIPsShowAction(ctx *cartridge.Context) error {
	value, err := settings.GetSetting(ctx.DB(), settings.KeyExcludedIPs)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(ctx, "Failed to load settings", err)
	}
	return ctx.JSON(excludedIPsParams{ExcludedIPs: value})
}

// ExcludedIPsUpdateAction replaces the excluded IP list.
func (h *Handlers) ExcludedIPsUpdateAction(ctx *cartridge.Context) error {
	var params excludedIPsParams
	if err := ctx.BodyParser(&params); err != nil {
		return badRequest(ctx, "Invalid request")
	}

	if valid, msg := validateIPList(params.ExcludedIPs); !valid {
		ctx.Logger.Warn("invalid IP format submitted", slog.String("error", msg))
		return badRequest(ctx, msg)
	}

	if err := settings.UpdateSetting(ctx.DB(), settings.KeyExcludedIPs, params.ExcludedIPs); err != nil {
		return internalError(ctx, "Failed to update IP filtering settings", err)
	}

	ctx.Logger.Info("excluded IPs updated")
	return ctx.JSON(params)
}
