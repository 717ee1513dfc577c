// Package payment implements the charge flow, the Mercado Pago adapter and
// webhook reconciliation on top of the payment_attempts idempotency store.
package payment

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
)

type Service struct {
	attempts AttemptRepository
	gateway  Gateway
}

func NewService(attempts AttemptRepository, gateway Gateway) *Service {
	return &Service{attempts: attempts, gateway: gateway}
}

// NewServiceFromDB creates a service with GORM repositories.
func NewServiceFromDB(db *gorm.DB, gateway Gateway) *Service {
	return NewService(NewAttemptRepository(db), gateway)
}

// Charge runs one charge for req.IdempotencyKey. An approved attempt is
// returned as is without calling the provider. Every provider outcome is
// persisted before an error is returned.
func (s *Service) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	existing, err := s.attempts.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unexpected("attempt_lookup_failed", err)
	}
	if existing.IsApproved() {
		log.Infof("[Payments] Returning approved attempt %s for repeated idempotency key", existing.ID)
		result := resultFromAttempt(existing)
		result.Cached = true
		return result, nil
	}

	attempt := &models.PaymentAttempt{
		IdempotencyKey: req.IdempotencyKey,
		Method:         req.Method,
		Amount:         req.Amount,
		Installments:   req.Installments,
	}

	if s.gateway == nil || !s.gateway.Configured() {
		attempt.Status = models.AttemptStatusPendingConfig
		attempt.ResponsePayload = errorPayload("payment_provider_unconfigured", "")
		if err := s.attempts.UpsertAttempt(ctx, attempt); err != nil {
			log.Errorf("[Payments] Failed to persist pending_config attempt: %v", err)
			return nil, apperror.Unexpected("attempt_persist_failed", err)
		}
		log.Warn("[Payments] Charge refused: provider access token is not configured")
		return nil, apperror.Configuration("payment_provider_unconfigured", "payment provider is not configured")
	}

	resp, callErr := s.gateway.CreatePayment(ctx, req)
	applyProviderResponse(attempt, resp, callErr)

	if err := s.attempts.UpsertAttempt(ctx, attempt); err != nil {
		log.Errorf("[Payments] Failed to persist attempt for provider payment %q: %v", attempt.ProviderID(), err)
		if callErr == nil {
			return nil, apperror.Unexpected("attempt_persist_failed", err)
		}
	}

	if callErr != nil {
		var rejected *RejectedError
		if errors.As(callErr, &rejected) {
			log.Warnf("[Payments] Provider rejected charge attempt %s: %v", attempt.ID, callErr)
			return nil, apperror.Provider("provider_rejected", callErr)
		}
		log.Errorf("[Payments] Provider unreachable for attempt %s: %v", attempt.ID, callErr)
		return nil, apperror.Provider("provider_unavailable", callErr)
	}

	log.Infof("[Payments] Attempt %s -> provider payment %s status=%s", attempt.ID, attempt.ProviderID(), attempt.Status)
	return resultFromAttempt(attempt), nil
}

func applyProviderResponse(attempt *models.PaymentAttempt, resp *ProviderResponse, callErr error) {
	attempt.Status = models.AttemptStatusProcessing
	if resp == nil {
		msg := ""
		if callErr != nil {
			msg = callErr.Error()
		}
		attempt.ResponsePayload = errorPayload("transport_error", msg)
		return
	}

	if len(resp.Raw) > 0 && json.Valid(resp.Raw) {
		attempt.ResponsePayload = datatypes.JSON(resp.Raw)
	} else {
		attempt.ResponsePayload = errorPayload("invalid_provider_response", string(resp.Raw))
	}

	switch resp.Kind {
	case ResponsePayment:
		attempt.Status = models.NextAttemptStatus("", resp.Payment.Status)
		attempt.StatusDetail = resp.Payment.StatusDetail
		if id := resp.PaymentID(); id != "" {
			attempt.ProviderPaymentID = &id
		}
	case ResponseError:
		if callErr != nil {
			attempt.StatusDetail = truncate(resp.Message(), 100)
		}
	}
}

func resultFromAttempt(a *models.PaymentAttempt) *ChargeResult {
	result := &ChargeResult{
		AttemptID:    a.ID,
		PaymentID:    a.ProviderID(),
		Status:       a.Status,
		StatusDetail: a.StatusDetail,
	}
	if resp := DecodeProviderResponse(a.ResponsePayload); resp.Payment != nil {
		result.QRCode = resp.Payment.PointOfInteraction.TransactionData.QRCode
		result.QRCodeBase64 = resp.Payment.PointOfInteraction.TransactionData.QRCodeBase64
		if result.PaymentID == "" {
			result.PaymentID = resp.PaymentID()
		}
	}
	return result
}

func errorPayload(code, message string) datatypes.JSON {
	body := map[string]string{"error": code}
	if message != "" {
		body["message"] = message
	}
	raw, _ := json.Marshal(body)
	return datatypes.JSON(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
