package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type PushTokenController struct {
	tokens repository.PushTokenRepository
	guard  RateGuard
}

func NewPushTokenController(tokens repository.PushTokenRepository, guard RateGuard) *PushTokenController {
	return &PushTokenController{tokens: tokens, guard: guard}
}

type registerPushTokenInput struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	UserID   string `json:"userId"`
}

// HandleRegisterPushToken: POST /register-push-token
func (pc *PushTokenController) HandleRegisterPushToken(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := pc.guard.enforce(ctx, c, ratelimit.BucketRegisterPushToken); err != nil {
		return renderError(c, err)
	}

	var in registerPushTokenInput
	if err := c.BodyParser(&in); err != nil {
		return renderError(c, invalidBody(err))
	}

	token := &models.PushToken{
		Token:    strings.TrimSpace(in.Token),
		Platform: strings.ToLower(strings.TrimSpace(in.Platform)),
	}
	if uid := strings.TrimSpace(in.UserID); uid != "" {
		token.UserID = &uid
	}
	if err := token.Validate(); err != nil {
		return renderError(c, apperror.Validation("invalid_push_token", err.Error()))
	}

	if err := pc.tokens.Upsert(token); err != nil {
		return renderError(c, apperror.Unexpected("push_token_persist_failed", err))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "id": token.ID, "platform": token.Platform})
}
