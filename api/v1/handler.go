package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"listingpulse/internal/events"
)

const (
	msgEventAdded     = "Event added successfully"
	errInvalidRequest = "Invalid request"
	statusDBBusy      = 599
)

// CreateTrafficParams is the collector payload for a page hit. Either path
// or url identifies the page.
type CreateTrafficParams struct {
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	Referrer    string    `json:"referrer"`
	Fingerprint string    `json:"fingerprint"`
	Country     string    `json:"country"`
	UserAgent   string    `json:"userAgent"`
	Timestamp   time.Time `json:"timestamp"`
}

// CreateConversionParams is the collector payload for a listing VIEW or CLICK.
type CreateConversionParams struct {
	Kind        events.ConversionKind `json:"kind"`
	ListingID   uint                  `json:"listingId"`
	VisitorKey  string                `json:"visitorKey"`
	Fingerprint string                `json:"fingerprint"`
	UserAgent   string                `json:"userAgent"`
	Timestamp   time.Time             `json:"timestamp"`
}

// CreateTrafficHandler records one page hit.
func CreateTrafficHandler(ctx *cartridge.Context) error {
	ctx.Logger.Debug("Received traffic request", slog.String("method", ctx.Method()), slog.String("path", ctx.Path()))

	var params CreateTrafficParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse traffic request", slog.Any("error", err))
		return handleError(ctx.Ctx, fiber.NewError(http.StatusBadRequest, errInvalidRequest))
	}

	input := &events.CollectTrafficInput{
		IPAddress:   clientIP(ctx.Ctx),
		Fingerprint: params.Fingerprint,
		UserAgent:   requestUserAgent(ctx.Ctx, params.UserAgent),
		ReferrerURL: params.Referrer,
		CountryCode: params.Country,
		Path:        pagePath(params.Path, params.URL),
		Timestamp:   params.Timestamp,
	}

	if _, err := events.CollectTraffic(ctx.DBManager, ctx.Logger, input); err != nil {
		return collectFailed(ctx, err)
	}
	return accepted(ctx)
}

// CreateConversionHandler records one listing VIEW or CLICK.
func CreateConversionHandler(ctx *cartridge.Context) error {
	ctx.Logger.Debug("Received conversion request", slog.String("method", ctx.Method()), slog.String("path", ctx.Path()))

	var params CreateConversionParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse conversion request", slog.Any("error", err))
		return handleError(ctx.Ctx, fiber.NewError(http.StatusBadRequest, errInvalidRequest))
	}

	input := &events.CollectConversionInput{
		Kind:        params.Kind,
		ListingID:   params.ListingID,
		VisitorKey:  params.VisitorKey,
		Fingerprint: params.Fingerprint,
		IPAddress:   clientIP(ctx.Ctx),
		UserAgent:   requestUserAgent(ctx.Ctx, params.UserAgent),
		Timestamp:   params.Timestamp,
	}

	if _, err := events.CollectConversion(ctx.DBManager, ctx.Logger, input); err != nil {
		if errors.Is(err, events.ErrInvalidKind) || errors.Is(err, events.ErrMissingListing) {
			return handleError(ctx.Ctx, fiber.NewError(http.StatusBadRequest, err.Error()))
		}
		return collectFailed(ctx, err)
	}
	return accepted(ctx)
}

func collectFailed(ctx *cartridge.Context, err error) error {
	ctx.Logger.Error("Failed to collect event", slog.Any("error", err))
	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
		return ctx.Status(statusDBBusy).JSON(fiber.Map{})
	}
	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to collect event",
		"code":  "COLLECTION_ERROR",
	})
}

func accepted(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgEventAdded,
		"status":  http.StatusAccepted,
	})
}

// requestUserAgent prefers the user agent reported in the payload, then the
// one forwarded by a server-side collector, then the request header.
func requestUserAgent(c *fiber.Ctx, reported string) string {
	if ua := strings.TrimSpace(reported); ua != "" {
		return ua
	}
	if forwarded := c.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return c.Get(fiber.HeaderUserAgent)
}

func pagePath(path, rawURL string) string {
	if path != "" || rawURL == "" {
		return path
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}

func handleError(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error": fiberErr.Message,
		})
	}

	return c.Status(http.StatusUnprocessableEntity).JSON(fiber.Map{
		"error": errInvalidRequest,
	})
}
