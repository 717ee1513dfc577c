package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
)

type memAttempts struct {
	mu      sync.Mutex
	rows    map[string]*models.PaymentAttempt
	upserts int
	updates int
	nextID  int
	failOn  string
}

func newMemAttempts() *memAttempts {
	return &memAttempts{rows: map[string]*models.PaymentAttempt{}}
}

func (m *memAttempts) FindByIdempotencyKey(_ context.Context, key string) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAttempts) UpsertAttempt(_ context.Context, attempt *models.PaymentAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "upsert" {
		return errors.New("db down")
	}
	m.upserts++
	if existing, ok := m.rows[attempt.IdempotencyKey]; ok {
		MergeExisting(attempt, existing)
	} else if attempt.ID == "" {
		m.nextID++
		attempt.ID = fmt.Sprintf("att-%d", m.nextID)
	}
	cp := *attempt
	m.rows[attempt.IdempotencyKey] = &cp
	return nil
}

func (m *memAttempts) UpdateByProviderPaymentID(_ context.Context, providerPaymentID string, upd AttemptUpdate) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "update" {
		return nil, errors.New("db down")
	}
	for _, a := range m.rows {
		if a.ProviderID() == providerPaymentID {
			m.updates++
			ApplyUpdate(a, upd)
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memAttempts) UpdateByIdempotencyKey(_ context.Context, key string, upd AttemptUpdate) (*models.PaymentAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[key]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	m.updates++
	ApplyUpdate(a, upd)
	cp := *a
	return &cp, nil
}

func (m *memAttempts) get(key string) *models.PaymentAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[key]
}

type memEvents struct {
	mu        sync.Mutex
	rows      map[string]*models.WebhookEvent
	processed map[uint]string
	nextID    uint
	// findMisses makes FindByEventID miss, as when a concurrent delivery
	// inserts between lookup and insert.
	findMisses bool
}

func newMemEvents() *memEvents {
	return &memEvents{rows: map[string]*models.WebhookEvent{}, processed: map[uint]string{}}
}

func (m *memEvents) FindByEventID(_ context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.rows[provider+"/"+eventID]
	if !ok || m.findMisses {
		return nil, gorm.ErrRecordNotFound
	}
	return ev, nil
}

func (m *memEvents) CreateIfNotExists(_ context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := event.Provider + "/" + event.ProviderEventID
	if ev, ok := m.rows[k]; ok {
		return false, ev, nil
	}
	m.nextID++
	event.ID = m.nextID
	m.rows[k] = event
	return true, event, nil
}

func (m *memEvents) MarkProcessed(_ context.Context, id uint, processingError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[id] = processingError
	return nil
}

type fakeGateway struct {
	configured bool
	createResp *ProviderResponse
	createErr  error
	getResp    *ProviderResponse
	getErr     error
	creates    []ChargeRequest
	gets       []string
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) CreatePayment(_ context.Context, req ChargeRequest) (*ProviderResponse, error) {
	g.creates = append(g.creates, req)
	return g.createResp, g.createErr
}

func (g *fakeGateway) GetPayment(_ context.Context, paymentID string) (*ProviderResponse, error) {
	g.gets = append(g.gets, paymentID)
	return g.getResp, g.getErr
}

func (g *fakeGateway) Ping(context.Context) error { return nil }

type fakeLimiter struct {
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) Allow(context.Context, string, string, int, int) (bool, error) {
	l.calls++
	return l.allow, l.err
}

type recordingArchiver struct {
	ids []string
	err error
}

func (a *recordingArchiver) Archive(_ context.Context, _ string, id string, _ []byte) error {
	a.ids = append(a.ids, id)
	return a.err
}

func providerJSON(v interface{}) *ProviderResponse {
	raw, _ := json.Marshal(v)
	return DecodeProviderResponse(raw)
}
