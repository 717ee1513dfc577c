package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
	"github.com/ManuelReschke/StoreFox/internal/pkg/audit"
	"github.com/ManuelReschke/StoreFox/internal/pkg/ratelimit"
)

const orphanKeyPrefix = "webhook-"

// OrphanKey is the synthetic idempotency key of an attempt created from a
// webhook that matched no local attempt.
func OrphanKey(providerPaymentID string) string {
	return orphanKeyPrefix + providerPaymentID
}

// WebhookDelivery is one inbound webhook call.
type WebhookDelivery struct {
	Body      []byte
	Query     map[string]string
	Signature string
	RequestID string
	ClientIP  string
}

// WebhookOutcome is what the webhook endpoint answers with.
type WebhookOutcome struct {
	Duplicate      bool
	Ignored        bool
	Topic          string
	PaymentID      string
	Status         string
	AttemptID      string
	IdempotencyKey string
}

// Reconciler applies provider webhooks to payment attempts. Financial state
// always comes from a fresh provider fetch, never from the webhook body.
type Reconciler struct {
	attempts AttemptRepository
	events   WebhookEventRepository
	gateway  Gateway
	limiter  ratelimit.Limiter
	rule     ratelimit.Rule
	archiver audit.Archiver
	secret   string
}

type ReconcilerConfig struct {
	WebhookSecret string
	RateLimit     ratelimit.Rule
}

func NewReconciler(attempts AttemptRepository, events WebhookEventRepository, gateway Gateway, limiter ratelimit.Limiter, archiver audit.Archiver, cfg ReconcilerConfig) *Reconciler {
	if archiver == nil {
		archiver = audit.NopArchiver{}
	}
	return &Reconciler{
		attempts: attempts,
		events:   events,
		gateway:  gateway,
		limiter:  limiter,
		rule:     cfg.RateLimit,
		archiver: archiver,
		secret:   strings.TrimSpace(cfg.WebhookSecret),
	}
}

// SecretConfigured reports whether signatures are enforced.
func (r *Reconciler) SecretConfigured() bool {
	return r.secret != ""
}

func (r *Reconciler) Handle(ctx context.Context, d WebhookDelivery) (*WebhookOutcome, error) {
	n := ParseNotification(d.Body, d.Query)

	if r.secret != "" && !VerifyWebhookSignature(d.Signature, r.secret, d.RequestID, n.PaymentID) {
		log.Warnf("[Webhook] Invalid signature from %s", d.ClientIP)
		return nil, apperror.Auth("invalid_signature", "webhook signature mismatch")
	}

	if !n.IsPayment() {
		log.Infof("[Webhook] Ignoring topic %q", n.Topic)
		return &WebhookOutcome{Ignored: true, Topic: n.Topic}, nil
	}
	if n.PaymentID == "" {
		return nil, apperror.Validation("missing_payment_id", "webhook carries no payment id")
	}

	if n.EventID != "" {
		prior, err := r.events.FindByEventID(ctx, models.PaymentProviderMercadoPago, n.EventID)
		if err == nil {
			log.Infof("[Webhook] Duplicate event %s for payment %s", n.EventID, n.PaymentID)
			return duplicateOutcome(prior, n), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unexpected("webhook_lookup_failed", err)
		}
	}

	// Checked before anything is recorded so provider retries succeed once
	// the access token is set.
	if r.gateway == nil || !r.gateway.Configured() {
		log.Errorf("[Webhook] Payment provider not configured, rejecting payment %s", n.PaymentID)
		return nil, apperror.Configuration("payment_provider_unconfigured", "payment provider is not configured")
	}

	if err := ratelimit.Enforce(ctx, r.limiter, ratelimit.BucketPaymentWebhook, d.ClientIP, r.rule); err != nil {
		return nil, err
	}

	var event *models.WebhookEvent
	if n.EventID != "" {
		created, stored, err := r.events.CreateIfNotExists(ctx, &models.WebhookEvent{
			Provider:        models.PaymentProviderMercadoPago,
			ProviderEventID: n.EventID,
			Topic:           n.Topic,
			PaymentID:       n.PaymentID,
			PayloadJSON:     string(d.Body),
			SignatureValid:  r.secret != "",
		})
		if err != nil {
			return nil, apperror.Unexpected("webhook_record_failed", err)
		}
		if !created {
			log.Infof("[Webhook] Event %s recorded concurrently, treating as duplicate", n.EventID)
			return duplicateOutcome(stored, n), nil
		}
		event = stored
	}

	archiveID := n.EventID
	if archiveID == "" {
		archiveID = "payment-" + n.PaymentID
	}
	if err := r.archiver.Archive(ctx, models.PaymentProviderMercadoPago, archiveID, d.Body); err != nil {
		log.Warnf("[Webhook] Archive failed for %s: %v", archiveID, err)
	}

	outcome, err := r.reconcile(ctx, n.PaymentID)
	r.markProcessed(ctx, event, err)
	if err != nil {
		return nil, err
	}
	outcome.Topic = n.Topic
	return outcome, nil
}

func (r *Reconciler) reconcile(ctx context.Context, paymentID string) (*WebhookOutcome, error) {
	resp, err := r.gateway.GetPayment(ctx, paymentID)
	if err != nil {
		log.Errorf("[Webhook] Fetching payment %s failed: %v", paymentID, err)
		return nil, apperror.Provider("provider_fetch_failed", err)
	}
	if resp == nil || resp.Payment == nil {
		return nil, apperror.Provider("provider_fetch_failed", fmt.Errorf("unexpected provider response kind %q", resp.Message()))
	}
	payment := resp.Payment

	upd := AttemptUpdate{
		Status:          payment.Status,
		StatusDetail:    payment.StatusDetail,
		ResponsePayload: resp.Raw,
	}

	attempt, err := r.attempts.UpdateByProviderPaymentID(ctx, paymentID, upd)
	if errors.Is(err, gorm.ErrRecordNotFound) && payment.ExternalReference != "" {
		upd.ProviderPaymentID = paymentID
		attempt, err = r.attempts.UpdateByIdempotencyKey(ctx, payment.ExternalReference, upd)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		attempt, err = r.insertOrphan(ctx, paymentID, resp)
	}
	if err != nil {
		log.Errorf("[Webhook] Updating attempt for payment %s failed: %v", paymentID, err)
		return nil, apperror.Unexpected("attempt_update_failed", err)
	}

	log.Infof("[Webhook] Payment %s -> attempt %s status=%s", paymentID, attempt.ID, attempt.Status)
	return &WebhookOutcome{
		PaymentID:      paymentID,
		Status:         attempt.Status,
		AttemptID:      attempt.ID,
		IdempotencyKey: attempt.IdempotencyKey,
	}, nil
}

func (r *Reconciler) insertOrphan(ctx context.Context, paymentID string, resp *ProviderResponse) (*models.PaymentAttempt, error) {
	p := resp.Payment
	method := models.PaymentMethodCard
	if p.PaymentMethodID == models.PaymentMethodPix {
		method = models.PaymentMethodPix
	}
	installments := p.Installments
	if installments < 1 {
		installments = 1
	}
	id := paymentID
	orphan := &models.PaymentAttempt{
		IdempotencyKey:    OrphanKey(paymentID),
		Method:            method,
		Amount:            RoundAmount(p.TransactionAmount),
		Installments:      installments,
		ProviderPaymentID: &id,
		Status:            models.NextAttemptStatus("", p.Status),
		StatusDetail:      p.StatusDetail,
		ResponsePayload:   datatypes.JSON(resp.Raw),
	}
	log.Warnf("[Webhook] No attempt matches payment %s, recording orphan %s", paymentID, orphan.IdempotencyKey)
	if err := r.attempts.UpsertAttempt(ctx, orphan); err != nil {
		return nil, err
	}
	return orphan, nil
}

func (r *Reconciler) markProcessed(ctx context.Context, event *models.WebhookEvent, processingErr error) {
	if event == nil {
		return
	}
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	if err := r.events.MarkProcessed(ctx, event.ID, msg); err != nil {
		log.Errorf("[Webhook] Failed to mark event %d processed: %v", event.ID, err)
	}
}

func duplicateOutcome(prior *models.WebhookEvent, n Notification) *WebhookOutcome {
	paymentID := n.PaymentID
	if prior != nil && prior.PaymentID != "" {
		paymentID = prior.PaymentID
	}
	return &WebhookOutcome{Duplicate: true, Topic: n.Topic, PaymentID: paymentID}
}
