package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// Locals keys set by APIKeyAuthMiddleware.
const (
	KeyUserID  = "user_id"
	KeyIsAdmin = "is_admin"
	keyUser    = "api_user"
)

func setUser(c *fiber.Ctx, user *models.User) {
	c.Locals(keyUser, user)
	c.Locals(KeyUserID, user.ID)
	c.Locals(KeyIsAdmin, user.IsActiveAdmin())
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(keyUser).(*models.User)
	return u
}

// IsAdmin reports whether the request was authenticated as an active admin.
func IsAdmin(c *fiber.Ctx) bool {
	isAdmin, ok := c.Locals(KeyIsAdmin).(bool)
	return ok && isAdmin
}
