package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type PaymentController struct {
	payments *payment.Service
	guard    RateGuard
}

func NewPaymentController(payments *payment.Service, guard RateGuard) *PaymentController {
	return &PaymentController{payments: payments, guard: guard}
}

type chargeResponse struct {
	OK bool `json:"ok"`
	*payment.ChargeResult
	Cached bool `json:"cached,omitempty"`
}

// HandleProcessPayment godoc: POST /process-payment
func (pc *PaymentController) HandleProcessPayment(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := pc.guard.enforce(ctx, c, ratelimit.BucketProcessPayment); err != nil {
		return renderError(c, err)
	}

	var in payment.ChargeInput
	if err := c.BodyParser(&in); err != nil {
		return renderError(c, invalidBody(err))
	}
	req, err := payment.ValidateCharge(in)
	if err != nil {
		return renderError(c, err)
	}

	result, err := pc.payments.Charge(ctx, *req)
	if err != nil {
		return renderError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(chargeResponse{OK: true, ChargeResult: result, Cached: result.Cached})
}
