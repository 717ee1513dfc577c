package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
)

// HealthChecks are the connectivity checks reported by /payment-health.
type HealthChecks struct {
	Database func() error
	Cache    func() error
}

type HealthController struct {
	gateway         payment.Gateway
	reconciler      *payment.Reconciler
	notificationURL bool
	checks          HealthChecks
	providerTimeout time.Duration
}

func NewHealthController(gateway payment.Gateway, reconciler *payment.Reconciler, notificationURLConfigured bool, checks HealthChecks) *HealthController {
	return &HealthController{
		gateway:         gateway,
		reconciler:      reconciler,
		notificationURL: notificationURLConfigured,
		checks:          checks,
		providerTimeout: 5 * time.Second,
	}
}

// HandleHealthz: GET /healthz
func (hc *HealthController) HandleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// HandlePaymentHealth reports configuration and connectivity as booleans
// only. No credential value is ever echoed.
func (hc *HealthController) HandlePaymentHealth(c *fiber.Ctx) error {
	configured := hc.gateway != nil && hc.gateway.Configured()
	reachable := false
	if configured {
		ctx, cancel := context.WithTimeout(c.UserContext(), hc.providerTimeout)
		err := hc.gateway.Ping(ctx)
		cancel()
		if err != nil {
			log.Warnf("[Health] Payment provider ping failed: %v", err)
		}
		reachable = err == nil
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok": true,
		"provider": fiber.Map{
			"configured": configured,
			"reachable":  reachable,
		},
		"webhookSecretConfigured":   hc.reconciler != nil && hc.reconciler.SecretConfigured(),
		"notificationUrlConfigured": hc.notificationURL,
		"database":                  runCheck("database", hc.checks.Database),
		"cache":                     runCheck("cache", hc.checks.Cache),
	})
}

func runCheck(name string, check func() error) bool {
	if check == nil {
		return false
	}
	if err := check(); err != nil {
		log.Warnf("[Health] %s check failed: %v", name, err)
		return false
	}
	return true
}
