package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"listingpulse/internal/dashboard"
	"listingpulse/internal/listings"
)

// DashboardAction serves the cached snapshot of the requested range.
func (h *Handlers) DashboardAction(ctx *cartridge.Context) error {
	r, err := parseRangeParam(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	snap, err := h.Cache.Get(ctx.UserContext(), r)
	if err != nil {
		if errors.Is(err, dashboard.ErrAnalyticsUnavailable) {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": dashboard.ErrAnalyticsUnavailable.Error(),
			})
		}
		return internalError(ctx, "Failed to load dashboard", err)
	}

	if snap.Stale {
		ctx.Set("Warning", `110 - "Response is Stale"`)
	}
	return ctx.JSON(snap)
}

// ListingFunnelAction serves the funnel of one listing.
func (h *Handlers) ListingFunnelAction(ctx *cartridge.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}
	r, err := parseRangeParam(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	funnel, err := h.Builder.ListingFunnel(ctx.UserContext(), id, r)
	if err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return notFound(ctx, "listing not found")
		}
		return internalError(ctx, "Failed to compute funnel", err)
	}
	return ctx.JSON(funnel)
}
