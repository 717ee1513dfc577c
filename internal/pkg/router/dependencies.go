package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/StoreFox/app/controllers"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/mail"
	"github.com/ManuelReschke/StoreFox/internal/pkg/notify"
	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

// Dependencies is everything the HTTP surface needs, built once at startup.
type Dependencies struct {
	Repositories *repository.Repositories
	Payments     *payment.Service
	Reconciler   *payment.Reconciler
	Gateway      payment.Gateway
	Limiter      ratelimit.Limiter
	Rules        ratelimit.Rules
	Processor    *notify.Processor
	BatchSize    int
	Mailer       mail.Mailer
	StoreURL     string
	CronSecret   string

	NotificationURLConfigured bool
	Health                    controllers.HealthChecks

	// LimiterStorage backs the global request limiter; nil keeps counters
	// in memory.
	LimiterStorage fiber.Storage
}

func (d *Dependencies) guard() controllers.RateGuard {
	return controllers.RateGuard{Limiter: d.Limiter, Rules: d.Rules}
}
