package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/payment"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type memAttempts struct {
	mu   sync.Mutex
	rows map[string]*models.PaymentAttempt
}

func newMemAttempts() *memAttempts {
	return &memAttempts{rows: map[string]*models.PaymentAttempt{}}
}

func (m *memAttempts) FindByIdempotencyKey(_ context.Context, key string) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[key]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAttempts) UpsertAttempt(_ context.Context, a *models.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[a.IdempotencyKey]; ok {
		payment.MergeExisting(a, existing)
	} else if a.ID == "" {
		a.ID = "att-" + a.IdempotencyKey
	}
	cp := *a
	m.rows[a.IdempotencyKey] = &cp
	return nil
}

func (m *memAttempts) UpdateByProviderPaymentID(_ context.Context, id string, upd payment.AttemptUpdate) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if a.ProviderID() == id {
			payment.ApplyUpdate(a, upd)
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAttempts) UpdateByIdempotencyKey(_ context.Context, key string, upd payment.AttemptUpdate) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	payment.ApplyUpdate(a, upd)
	cp := *a
	return &cp, nil
}

func (m *memAttempts) get(key string) *models.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[key]
}

type memEvents struct {
	mu   sync.Mutex
	rows map[string]*models.WebhookEvent
	next uint
}

func newMemEvents() *memEvents {
	return &memEvents{rows: map[string]*models.WebhookEvent{}}
}

func (m *memEvents) FindByEventID(_ context.Context, provider, id string) (*models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[provider+"/"+id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memEvents) CreateIfNotExists(_ context.Context, e *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := e.Provider + "/" + e.ProviderEventID
	if existing, ok := m.rows[k]; ok {
		return false, existing, nil
	}
	m.next++
	e.ID = m.next
	m.rows[k] = e
	return true, e, nil
}

func (m *memEvents) MarkProcessed(_ context.Context, id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.ID == id {
			e.ProcessingError = processingError
		}
	}
	return nil
}

type stubGateway struct {
	configured bool
	create     *payment.ProviderResponse
	createErr  error
	get        *payment.ProviderResponse
	pingErr    error
	calls      int
}

func (g *stubGateway) Configured() bool { return g.configured }

func (g *stubGateway) CreatePayment(context.Context, payment.ChargeRequest) (*payment.ProviderResponse, error) {
	g.calls++
	return g.create, g.createErr
}

func (g *stubGateway) GetPayment(context.Context, string) (*payment.ProviderResponse, error) {
	g.calls++
	return g.get, nil
}

func (g *stubGateway) Ping(context.Context) error { return g.pingErr }

// countingLimiter allows the first limit calls per bucket/key.
type countingLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *countingLimiter) Allow(_ context.Context, bucket, key string, limit, _ int) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[bucket+"/"+key]++
	return l.counts[bucket+"/"+key] <= limit, nil
}

func guardWith(l ratelimit.Limiter) RateGuard {
	return RateGuard{Limiter: l, Rules: ratelimit.Rules{
		ratelimit.BucketProcessPayment:      {Limit: 2, WindowMinutes: 10},
		ratelimit.BucketPaymentWebhook:      {Limit: 5, WindowMinutes: 1},
		ratelimit.BucketRegisterPushToken:   {Limit: 2, WindowMinutes: 10},
		ratelimit.BucketSendWelcomeEmail:    {Limit: 1, WindowMinutes: 60},
		ratelimit.BucketNewsletterSubscribe: {Limit: 2, WindowMinutes: 60},
	}}
}

func providerResponse(t *testing.T, body string) *payment.ProviderResponse {
	t.Helper()
	return payment.DecodeProviderResponse([]byte(body))
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

type memPushTokens struct {
	rows map[string]*models.PushToken
	err  error
}

func (m *memPushTokens) Upsert(t *models.PushToken) error {
	if m.err != nil {
		return m.err
	}
	if m.rows == nil {
		m.rows = map[string]*models.PushToken{}
	}
	if existing, ok := m.rows[t.Token]; ok {
		t.ID = existing.ID
	} else {
		t.ID = uint(len(m.rows) + 1)
	}
	cp := *t
	m.rows[t.Token] = &cp
	return nil
}

func (m *memPushTokens) CountByPlatform() (map[string]int64, error) {
	out := map[string]int64{}
	for _, row := range m.rows {
		out[row.Platform]++
	}
	return out, nil
}

type memNewsletter struct {
	rows map[string]*models.NewsletterSubscriber
}

func (m *memNewsletter) Subscribe(sub *models.NewsletterSubscriber) (bool, error) {
	if m.rows == nil {
		m.rows = map[string]*models.NewsletterSubscriber{}
	}
	_, exists := m.rows[sub.Email]
	cp := *sub
	m.rows[sub.Email] = &cp
	return !exists, nil
}

type stubMailer struct {
	configured bool
	err        error
	sent       []string
}

func (m *stubMailer) Configured() bool { return m.configured }

func (m *stubMailer) Send(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type memNotifications struct {
	events    []models.NotificationEvent
	campaigns []*models.NotificationCampaign
	claimErr  error
}

func (m *memNotifications) ClaimQueued(_ context.Context, limit int) ([]models.NotificationEvent, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	var out []models.NotificationEvent
	for _, ev := range m.events {
		if ev.Status == models.NotificationEventQueued && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memNotifications) CreateCampaign(_ context.Context, c *models.NotificationCampaign) error {
	c.ID = "camp-" + c.Title
	m.campaigns = append(m.campaigns, c)
	return nil
}

func (m *memNotifications) MarkCampaignDispatched(context.Context, string) error { return nil }

func (m *memNotifications) MarkProcessed(_ context.Context, id uint) error {
	return m.setStatus(id, models.NotificationEventProcessed)
}

func (m *memNotifications) MarkFailed(_ context.Context, id uint, _ string) error {
	return m.setStatus(id, models.NotificationEventFailed)
}

func (m *memNotifications) setStatus(id uint, status string) error {
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Status = status
			return nil
		}
	}
	return errors.New("event not found")
}

func queuedEvent(id uint, eventType, payload string) models.NotificationEvent {
	return models.NotificationEvent{
		ID:        id,
		EventType: eventType,
		Payload:   datatypes.JSON(payload),
		Status:    models.NotificationEventQueued,
	}
}
