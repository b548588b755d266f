package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"listingpulse/internal/listings"
)

const (
	defaultListingsLimit = 20
	maxListingsLimit     = 100
)

// ListingsIndexAction lists listings by trending score, highest first.
func (h *Handlers) ListingsIndexAction(ctx *cartridge.Context) error {
	limit := defaultListingsLimit
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return badRequest(ctx, "limit must be a positive integer")
		}
		limit = min(parsed, maxListingsLimit)
	}

	result, err := listings.ListByTrendingScore(ctx.UserContext(), ctx.DB(), limit)
	if err != nil {
		return internalError(ctx, "Failed to list listings", err)
	}
	if result == nil {
		result = []listings.Listing{}
	}
	return ctx.JSON(fiber.Map{"listings": result})
}

// ListingScoreAction computes the live score breakdown of one listing
// without storing it.
func (h *Handlers) ListingScoreAction(ctx *cartridge.Context) error {
	id, err := parseIDParam(ctx)
	if err != nil {
		return badRequest(ctx, err.Error())
	}

	listing, err := listings.GetListing(ctx.UserContext(), ctx.DB(), id)
	if err != nil {
		if errors.Is(err, listings.ErrListingNotFound) {
			return notFound(ctx, "listing not found")
		}
		return internalError(ctx, "Failed to load listing", err)
	}

	breakdown, err := listings.Breakdown(ctx.UserContext(), ctx.DB(), listing, h.Clock.Now(), h.Config.TrendingWindow())
	if err != nil {
		return internalError(ctx, "Failed to compute score", err)
	}

	return ctx.JSON(fiber.Map{
		"listing_id":        listing.ID,
		"stored_score":      listing.TrendingScore,
		"score_computed_at": listing.ScoreComputedAt,
		"breakdown":         breakdown,
	})
}
