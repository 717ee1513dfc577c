package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/StoreFox/app/controllers"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/audit"
	"github.com/ManuelReschke/StoreFox/internal/pkg/cache"
	"github.com/ManuelReschke/StoreFox/internal/pkg/database"
	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
	"github.com/ManuelReschke/StoreFox/internal/pkg/mail"
	"github.com/ManuelReschke/StoreFox/internal/pkg/notify"
	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
	"github.com/ManuelReschke/StoreFox/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	if env.GetEnvBool("NOTIFY_WORKER_ENABLED", true) {
		manager.Start()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		manager.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *notify.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/storefox to project root
		"../../../", // Fallback
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	app := fiber.New(fiber.Config{
		BodyLimit:   1 * 1024 * 1024,
		ProxyHeader: env.GetEnv("PROXY_HEADER", ""),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	deps, manager := buildDependencies()
	router.InstallRouter(app, deps)

	return app, manager
}

func buildDependencies() (*router.Dependencies, *notify.Manager) {
	ctx := context.Background()
	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	gateway := payment.NewMercadoPagoClientFromEnv()
	if !gateway.Configured() {
		log.Println("Warning: MP_ACCESS_TOKEN is not set, charges will be stored as pending_config")
	}

	limiter := ratelimit.NewFromEnv(db, cache.GetClient())
	rules := ratelimit.LoadRules()

	reconciler := payment.NewReconciler(
		payment.NewAttemptRepository(db),
		payment.NewWebhookEventRepository(db),
		gateway,
		limiter,
		audit.NewFromEnv(ctx),
		payment.ReconcilerConfig{
			WebhookSecret: env.GetEnv("MP_WEBHOOK_SECRET", ""),
			RateLimit:     rules.For(ratelimit.BucketPaymentWebhook),
		},
	)

	processor := notify.NewProcessorFromDB(db, notify.NewDispatcherFromEnv(ctx))

	var limiterStorage fiber.Storage
	if env.GetEnvBool("GLOBAL_RATE_LIMIT_REDIS", true) {
		limiterStorage = router.NewLimiterStorage()
	}

	deps := &router.Dependencies{
		Repositories: repos,
		Payments:     payment.NewServiceFromDB(db, gateway),
		Reconciler:   reconciler,
		Gateway:      gateway,
		Limiter:      limiter,
		Rules:        rules,
		Processor:    processor,
		BatchSize:    env.GetEnvInt("NOTIFY_BATCH_SIZE", notify.DefaultBatchSize),
		Mailer:       mail.NewSMTPMailerFromEnv(),
		StoreURL:     strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"),
		CronSecret:   env.GetEnv("CRON_SECRET", ""),

		NotificationURLConfigured: gateway.NotificationURL != "",
		Health: controllers.HealthChecks{
			Database: database.Ping,
			Cache:    func() error { return cache.Ping(2 * time.Second) },
		},
		LimiterStorage: limiterStorage,
	}

	return deps, notify.NewManagerFromEnv(processor)
}
