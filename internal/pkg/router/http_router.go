package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

type HttpRouter struct {
	deps *Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// storefront, app shell and provider callbacks all call in cross-origin
	app.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowMethods: strings.Join([]string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodOptions,
		}, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-API-Key, X-Signature, X-Request-Id",
	}))

	app.Get("/healthz", newHealthController(h.deps).HandleHealthz)

	h.registerAdminRoutes(app)
	h.registerPublicRoutes(app)
}

func NewHttpRouter(deps *Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
