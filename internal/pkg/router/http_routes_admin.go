package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/app/controllers"
	"github.com/ManuelReschke/StoreFox/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	d := h.deps

	health := newHealthController(d)
	adminAuth := middleware.APIKeyAuthMiddleware(d.Repositories.User)
	app.Get("/payment-health", adminAuth, middleware.RequireAdmin, health.HandlePaymentHealth)
	app.Post("/payment-health", adminAuth, middleware.RequireAdmin, health.HandlePaymentHealth)

	// Scheduler entry point
	notifications := controllers.NewNotificationController(d.Processor, d.BatchSize)
	app.Post("/process-notification-events", middleware.RequireCronSecret(d.CronSecret), notifications.HandleProcessNotificationEvents)
}

func newHealthController(d *Dependencies) *controllers.HealthController {
	return controllers.NewHealthController(d.Gateway, d.Reconciler, d.NotificationURLConfigured, d.Health)
}
