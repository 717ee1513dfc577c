package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

type reconcilerFixture struct {
	attempts *memAttempts
	events   *memEvents
	gateway  *fakeGateway
	limiter  *fakeLimiter
	archiver *recordingArchiver
	r        *Reconciler
}

func newReconcilerFixture(secret string) *reconcilerFixture {
	f := &reconcilerFixture{
		attempts: newMemAttempts(),
		events:   newMemEvents(),
		gateway:  &fakeGateway{configured: true},
		limiter:  &fakeLimiter{allow: true},
		archiver: &recordingArchiver{},
	}
	f.r = NewReconciler(f.attempts, f.events, f.gateway, f.limiter, f.archiver, ReconcilerConfig{
		WebhookSecret: secret,
		RateLimit:     ratelimit.Rule{Limit: 120, WindowMinutes: 1},
	})
	return f
}

func (f *reconcilerFixture) seedAttempt(key, providerID, status string) {
	a := &models.PaymentAttempt{IdempotencyKey: key, Method: "pix", Amount: 50, Installments: 1, Status: status}
	if providerID != "" {
		a.ProviderPaymentID = &providerID
	}
	_ = f.attempts.UpsertAttempt(context.Background(), a)
}

func delivery(body string) WebhookDelivery {
	return WebhookDelivery{Body: []byte(body), ClientIP: "10.0.0.1"}
}

const approvedWebhook = `{"id":"evt-1","type":"payment","action":"payment.updated","data":{"id":"mp-1"}}`

func TestReconciler_ScenarioB(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved", "external_reference": "abc12345"})

	out, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, "mp-1", out.PaymentID)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "abc12345", out.IdempotencyKey)
	assert.NotEmpty(t, out.AttemptID)
	assert.Equal(t, "approved", f.attempts.get("abc12345").Status)
	assert.Equal(t, []string{"evt-1"}, f.archiver.ids)
	assert.Equal(t, map[uint]string{1: ""}, f.events.processed)

	updatesBefore := f.attempts.updates
	again, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, "mp-1", again.PaymentID)
	assert.Equal(t, updatesBefore, f.attempts.updates)
	assert.Len(t, f.gateway.gets, 1)
	assert.Equal(t, 1, f.limiter.calls)
}

func TestReconciler_ScenarioC_BadSignatureWritesNothing(t *testing.T) {
	f := newReconcilerFixture("whsec-test")
	d := delivery(approvedWebhook)
	d.Signature = "not-the-secret"

	_, err := f.r.Handle(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperror.StatusCode(err))
	assert.Empty(t, f.events.rows)
	assert.Empty(t, f.attempts.rows)
	assert.Empty(t, f.gateway.gets)
	assert.Zero(t, f.limiter.calls)

	d.Signature = ""
	_, err = f.r.Handle(context.Background(), d)
	assert.Equal(t, http.StatusUnauthorized, apperror.StatusCode(err))
}

func TestReconciler_ValidSignatureIsAccepted(t *testing.T) {
	f := newReconcilerFixture("whsec-test")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})

	d := delivery(approvedWebhook)
	d.Signature = "whsec-test"
	_, err := f.r.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, f.events.rows["mercadopago/evt-1"].SignatureValid)
}

func TestReconciler_FallsBackToExternalReferenceAndBackfills(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "", "processing")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-7", "status": "approved", "external_reference": "abc12345"})

	out, err := f.r.Handle(context.Background(), delivery(`{"id":"evt-7","type":"payment","data":{"id":"mp-7"}}`))
	require.NoError(t, err)
	assert.Equal(t, "abc12345", out.IdempotencyKey)

	row := f.attempts.get("abc12345")
	assert.Equal(t, "approved", row.Status)
	assert.Equal(t, "mp-7", row.ProviderID())
	assert.Len(t, f.attempts.rows, 1)
}

func TestReconciler_InsertsOrphanWhenNothingMatches(t *testing.T) {
	f := newReconcilerFixture("")
	f.gateway.getResp = providerJSON(map[string]interface{}{
		"id": 555, "status": "approved", "payment_method_id": "pix", "transaction_amount": 19.9, "external_reference": "unknown-ref",
	})

	out, err := f.r.Handle(context.Background(), delivery(`{"id":"evt-5","type":"payment","data":{"id":"555"}}`))
	require.NoError(t, err)
	assert.Equal(t, OrphanKey("555"), out.IdempotencyKey)

	orphan := f.attempts.get("webhook-555")
	require.NotNil(t, orphan)
	assert.Equal(t, "approved", orphan.Status)
	assert.Equal(t, "pix", orphan.Method)
	assert.Equal(t, 19.9, orphan.Amount)
	assert.Equal(t, 1, orphan.Installments)
	assert.Equal(t, "555", orphan.ProviderID())
}

func TestReconciler_ApprovedIsNeverDowngraded(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "mp-1", "approved")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "pending"})

	out, err := f.r.Handle(context.Background(), delivery(`{"id":"evt-late","type":"payment","data":{"id":"mp-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "approved", f.attempts.get("abc12345").Status)
}

func TestReconciler_FetchFailureMarksEvent(t *testing.T) {
	f := newReconcilerFixture("")
	f.gateway.getErr = errors.New("connection reset")

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperror.StatusCode(err))
	require.Contains(t, f.events.processed, uint(1))
	assert.Contains(t, f.events.processed[1], "connection reset")
	assert.Empty(t, f.attempts.rows)

	// The event is recorded, so a redelivery is a duplicate.
	again, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
}

func TestReconciler_DatabaseErrorIsRetryable(t *testing.T) {
	f := newReconcilerFixture("")
	f.attempts.failOn = "update"
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperror.StatusCode(err))
	assert.True(t, apperror.As(err).Retryable())
}

func TestReconciler_WithoutEventIDRecordsNothing(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})

	d := WebhookDelivery{Query: map[string]string{"topic": "payment", "id": "mp-1"}, ClientIP: "10.0.0.1"}
	out, err := f.r.Handle(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "approved", out.Status)
	assert.Empty(t, f.events.rows)
	assert.Equal(t, []string{"payment-mp-1"}, f.archiver.ids)
}

func TestReconciler_IgnoresOtherTopics(t *testing.T) {
	f := newReconcilerFixture("")
	out, err := f.r.Handle(context.Background(), WebhookDelivery{Query: map[string]string{"topic": "merchant_order", "id": "1"}})
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Empty(t, f.gateway.gets)
}

func TestReconciler_MissingPaymentID(t *testing.T) {
	f := newReconcilerFixture("")
	_, err := f.r.Handle(context.Background(), delivery(`{"id":"evt-x","type":"payment"}`))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperror.StatusCode(err))
	assert.Empty(t, f.events.rows)
}

func TestReconciler_RateLimitedBeforeAnyWrite(t *testing.T) {
	f := newReconcilerFixture("")
	f.limiter.allow = false

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, apperror.StatusCode(err))
	assert.Empty(t, f.events.rows)
	assert.Empty(t, f.gateway.gets)
}

func TestReconciler_ArchiveFailureDoesNotBlock(t *testing.T) {
	f := newReconcilerFixture("")
	f.archiver.err = errors.New("bucket gone")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	assert.NoError(t, err)
}

func TestReconciler_UnconfiguredProviderRecordsNothing(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.configured = false

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, apperror.StatusCode(err))
	assert.Empty(t, f.events.rows)
	assert.Empty(t, f.archiver.ids)
	assert.Equal(t, 0, f.limiter.calls)

	// Once the token is set, the provider retry of the same event is applied.
	f.gateway.configured = true
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})
	out, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)
	assert.False(t, out.Duplicate)
	assert.Equal(t, "approved", out.Status)
	assert.Equal(t, "approved", f.attempts.get("abc12345").Status)
}

func TestReconciler_LostInsertRaceIsDuplicate(t *testing.T) {
	f := newReconcilerFixture("")
	f.seedAttempt("abc12345", "mp-1", "pending")
	f.gateway.getResp = providerJSON(map[string]interface{}{"id": "mp-1", "status": "approved"})

	_, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)

	f.events.findMisses = true
	out, err := f.r.Handle(context.Background(), delivery(approvedWebhook))
	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Equal(t, "mp-1", out.PaymentID)
	assert.Len(t, f.gateway.gets, 1)
	assert.Len(t, f.events.processed, 1)
}
