package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
)

type WebhookController struct {
	reconciler *payment.Reconciler
}

func NewWebhookController(reconciler *payment.Reconciler) *WebhookController {
	return &WebhookController{reconciler: reconciler}
}

// HandlePaymentWebhook: POST /process-payment-webhook
func (wc *WebhookController) HandlePaymentWebhook(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	outcome, err := wc.reconciler.Handle(ctx, payment.WebhookDelivery{
		Body:      append([]byte(nil), c.Body()...),
		Query:     c.Queries(),
		Signature: strings.TrimSpace(c.Get("X-Signature")),
		RequestID: strings.TrimSpace(c.Get("X-Request-Id")),
		ClientIP:  ClientIP(c),
	})
	if err != nil {
		return renderError(c, err)
	}

	switch {
	case outcome.Ignored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true, "topic": outcome.Topic})
	case outcome.Duplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true, "paymentId": outcome.PaymentID})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":             true,
		"paymentId":      outcome.PaymentID,
		"status":         outcome.Status,
		"attemptId":      outcome.AttemptID,
		"idempotencyKey": outcome.IdempotencyKey,
	})
}
