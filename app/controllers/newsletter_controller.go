package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type NewsletterController struct {
	subscribers repository.NewsletterRepository
	guard       RateGuard
}

func NewNewsletterController(subscribers repository.NewsletterRepository, guard RateGuard) *NewsletterController {
	return &NewsletterController{subscribers: subscribers, guard: guard}
}

type newsletterInput struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// HandleNewsletterSubscribe: POST /newsletter-subscribe
func (nc *NewsletterController) HandleNewsletterSubscribe(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := nc.guard.enforce(ctx, c, ratelimit.BucketNewsletterSubscribe); err != nil {
		return renderError(c, err)
	}

	var in newsletterInput
	if err := c.BodyParser(&in); err != nil {
		return renderError(c, invalidBody(err))
	}

	sub := &models.NewsletterSubscriber{
		Email:  strings.ToLower(strings.TrimSpace(in.Email)),
		Name:   strings.TrimSpace(in.Name),
		Source: strings.TrimSpace(in.Source),
	}
	if sub.Source == "" {
		sub.Source = "site"
	}
	if err := sub.Validate(); err != nil {
		return renderError(c, apperror.Validation("invalid_email", "a valid email is required"))
	}

	created, err := nc.subscribers.Subscribe(sub)
	if err != nil {
		return renderError(c, apperror.Unexpected("newsletter_persist_failed", err))
	}
	if created {
		log.Infof("[Newsletter] New subscriber from %s", sub.Source)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "created": created})
}
