package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

const requestTimeout = 20 * time.Second

// ClientIP determines the client address considering proxies: Cloudflare,
// then the first X-Forwarded-For entry, then X-Real-IP, then the socket.
func ClientIP(c *fiber.Ctx) string {
	if ip := strings.TrimSpace(c.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return c.IP()
}

// renderError writes {ok:false, error, message} with the status of err.
// Unexpected errors are logged with detail and rendered generically.
func renderError(c *fiber.Ctx, err error) error {
	appErr := apperror.As(err)
	status := apperror.StatusCode(appErr)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("[HTTP] %s %s -> %d: %v", c.Method(), c.Path(), status, err)
	}
	return c.Status(status).JSON(fiber.Map{
		"ok":      false,
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

// RateGuard consults the limiter for one bucket before a handler mutates
// state.
type RateGuard struct {
	Limiter ratelimit.Limiter
	Rules   ratelimit.Rules
}

func (g RateGuard) enforce(ctx context.Context, c *fiber.Ctx, bucket string) error {
	return ratelimit.Enforce(ctx, g.Limiter, bucket, ClientIP(c), g.Rules.For(bucket))
}

func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), requestTimeout)
}

func invalidBody(err error) error {
	return apperror.Validation("invalid_body", "request body must be valid JSON: "+err.Error())
}
