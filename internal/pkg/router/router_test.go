package router

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/app/repository"
	"github.com/ManuelReschke/StoreFox/internal/pkg/notify"
	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type stubUsers struct{}

func (stubUsers) GetByID(uint) (*models.User, error) { return nil, gorm.ErrRecordNotFound }
func (stubUsers) GetByEmail(string) (*models.User, error) { return nil, gorm.ErrRecordNotFound }
func (stubUsers) TouchAPIKeyUsage(uint) error { return nil }
func (stubUsers) GetByAPIKeyHash(h string) (*models.User, error) {
	if h == models.HashAPIKey("admin-key") {
		return &models.User{ID: 1, Role: models.ROLE_ADMIN, Status: models.STATUS_ACTIVE}, nil
	}
	if h == models.HashAPIKey("user-key") {
		return &models.User{ID: 2, Role: models.ROLE_USER, Status: models.STATUS_ACTIVE}, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type noEvents struct{}

func (noEvents) ClaimQueued(context.Context, int) ([]models.NotificationEvent, error) {
	return nil, nil
}
func (noEvents) CreateCampaign(context.Context, *models.NotificationCampaign) error { return nil }
func (noEvents) MarkCampaignDispatched(context.Context, string) error { return nil }
func (noEvents) MarkProcessed(context.Context, uint) error { return nil }
func (noEvents) MarkFailed(context.Context, uint, string) error { return nil }

type allowAll struct{}

func (allowAll) Allow(context.Context, string, string, int, int) (bool, error) { return true, nil }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	t.Setenv("GLOBAL_RATE_LIMIT_MAX", "3")
	t.Setenv("CORS_ALLOW_ORIGINS", "*")

	gw := &payment.MercadoPagoClient{}
	app := fiber.New()
	InstallRouter(app, &Dependencies{
		Repositories: &repository.Repositories{User: stubUsers{}},
		Payments:     payment.NewService(nil, gw),
		Reconciler:   payment.NewReconciler(nil, nil, gw, allowAll{}, nil, payment.ReconcilerConfig{}),
		Gateway:      gw,
		Limiter:      allowAll{},
		Rules:        ratelimit.LoadRules(),
		Processor:    notify.NewProcessor(noEvents{}, nil),
		CronSecret:   "cron-secret",
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, target string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(""))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodOptions, "/process-payment", nil)
	req.Header.Set("Origin", "https://loja.example.com")
	req.Header.Set("Access-Control-Request-Method", fiber.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), fiber.MethodPost)
}

func TestPaymentHealthRequiresAdmin(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, fiber.StatusUnauthorized, send(t, app, fiber.MethodPost, "/payment-health", nil))
	assert.Equal(t, fiber.StatusForbidden, send(t, app, fiber.MethodPost, "/payment-health", map[string]string{"Authorization": "Bearer user-key"}))
	assert.Equal(t, fiber.StatusOK, send(t, app, fiber.MethodPost, "/payment-health", map[string]string{"Authorization": "Bearer admin-key"}))
	assert.Equal(t, fiber.StatusOK, send(t, app, fiber.MethodGet, "/payment-health", map[string]string{"X-API-Key": "admin-key"}))
}

func TestNotificationEventsRequireCronSecret(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, fiber.StatusUnauthorized, send(t, app, fiber.MethodPost, "/process-notification-events", nil))
	assert.Equal(t, fiber.StatusOK, send(t, app, fiber.MethodPost, "/process-notification-events", map[string]string{"Authorization": "Bearer cron-secret"}))
}

func TestGlobalLimiterSkipsWebhook(t *testing.T) {
	app := newTestApp(t)

	for i := 0; i < 3; i++ {
		assert.Equal(t, fiber.StatusBadRequest, send(t, app, fiber.MethodPost, "/register-push-token", map[string]string{"Content-Type": "application/json"}))
	}
	assert.Equal(t, fiber.StatusTooManyRequests, send(t, app, fiber.MethodPost, "/register-push-token", map[string]string{"Content-Type": "application/json"}))

	// Webhooks are not behind the global limiter; an unconfigured provider
	// answers 400 for a body without payment id.
	for i := 0; i < 5; i++ {
		assert.Equal(t, fiber.StatusBadRequest, send(t, app, fiber.MethodPost, "/process-payment-webhook", nil))
	}
}

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, fiber.StatusOK, send(t, app, fiber.MethodGet, "/healthz", nil))
}
