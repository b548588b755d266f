package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminAPIKeyAuth validates the admin API key.
// Expects: Authorization: Bearer <api_key>
func AdminAPIKeyAuth(apiKey string, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			logger.Warn("Admin API key not configured")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Admin API key not configured. Set LISTINGPULSE_ADMIN_API_KEY.",
			})
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Authorization header",
			})
		}

		providedKey, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid Authorization header format. Expected: Bearer <api_key>",
			})
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		return c.Next()
	}
}
