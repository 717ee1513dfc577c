package controllers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/mail"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

var validate = validator.New()

type WelcomeEmailController struct {
	mailer   mail.Mailer
	storeURL string
	guard    RateGuard
}

func NewWelcomeEmailController(mailer mail.Mailer, storeURL string, guard RateGuard) *WelcomeEmailController {
	return &WelcomeEmailController{mailer: mailer, storeURL: storeURL, guard: guard}
}

type welcomeEmailInput struct {
	Email string `json:"email" validate:"required,email,max=200"`
	Name  string `json:"name" validate:"max=150"`
}

// HandleSendWelcomeEmail: POST /send-welcome-email
func (wc *WelcomeEmailController) HandleSendWelcomeEmail(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := wc.guard.enforce(ctx, c, ratelimit.BucketSendWelcomeEmail); err != nil {
		return renderError(c, err)
	}

	var in welcomeEmailInput
	if err := c.BodyParser(&in); err != nil {
		return renderError(c, invalidBody(err))
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return renderError(c, apperror.Validation("invalid_email", "a valid email is required"))
	}

	if wc.mailer == nil || !wc.mailer.Configured() {
		return renderError(c, apperror.Configuration("email_unconfigured", "email delivery is not configured"))
	}

	body, err := mail.WelcomeEmail(in.Name, wc.storeURL)
	if err != nil {
		return renderError(c, apperror.Unexpected("email_render_failed", err))
	}
	if err := wc.mailer.Send(in.Email, mail.WelcomeSubject, body); err != nil {
		return renderError(c, &apperror.Error{
			Kind:    apperror.KindProvider,
			Code:    "email_send_failed",
			Message: "email provider request failed",
			Err:     err,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
