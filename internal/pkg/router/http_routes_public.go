package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/app/controllers"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	d := h.deps

	// Provider webhooks, registered ahead of the global limiter. Signature
	// and bucket limits are checked inside the reconciler.
	app.Post("/process-payment-webhook", controllers.NewWebhookController(d.Reconciler).HandlePaymentWebhook)

	public := app.Group("", globalLimiter(d.LimiterStorage))

	// Payments
	public.Post("/process-payment", controllers.NewPaymentController(d.Payments, d.guard()).HandleProcessPayment)

	// Storefront intake
	public.Post("/register-push-token", controllers.NewPushTokenController(d.Repositories.PushToken, d.guard()).HandleRegisterPushToken)
	public.Post("/newsletter-subscribe", controllers.NewNewsletterController(d.Repositories.Newsletter, d.guard()).HandleNewsletterSubscribe)
	public.Post("/send-welcome-email", controllers.NewWelcomeEmailController(d.Mailer, d.StoreURL, d.guard()).HandleSendWelcomeEmail)
}
