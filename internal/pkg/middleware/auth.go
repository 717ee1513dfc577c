package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireAdmin must run after APIKeyAuthMiddleware and rejects non-admins
// with 403.
func RequireAdmin(c *fiber.Ctx) error {
	if !IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"ok":      false,
			"error":   "forbidden",
			"message": "admin role required",
		})
	}
	return c.Next()
}

// RequireCronSecret protects scheduler endpoints with a shared bearer secret.
// An empty secret leaves the route open.
func RequireCronSecret(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		token := bearerToken(c)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"ok":      false,
				"error":   "unauthorized",
				"message": "invalid cron secret",
			})
		}
		return c.Next()
	}
}
