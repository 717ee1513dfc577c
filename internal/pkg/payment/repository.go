package payment

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// AttemptRepository persists payment attempts. Lookups that find nothing
// return gorm.ErrRecordNotFound.
type AttemptRepository interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentAttempt, error)
	UpsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
	UpdateByProviderPaymentID(ctx context.Context, providerPaymentID string, upd AttemptUpdate) (*models.PaymentAttempt, error)
	UpdateByIdempotencyKey(ctx context.Context, key string, upd AttemptUpdate) (*models.PaymentAttempt, error)
}

// WebhookEventRepository persists webhook deliveries for deduplication.
type WebhookEventRepository interface {
	FindByEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error)
	CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

type gormAttemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository creates an attempt repository backed by GORM.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &gormAttemptRepository{db: db}
}

func (r *gormAttemptRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.PaymentAttempt, error) {
	var a models.PaymentAttempt
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// UpsertAttempt creates the row for attempt.IdempotencyKey or overwrites the
// existing one under a row lock. A concurrent insert losing the unique index
// race is retried once as an update.
func (r *gormAttemptRepository) UpsertAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	err := r.upsertOnce(ctx, attempt)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = r.upsertOnce(ctx, attempt)
	}
	return err
}

func (r *gormAttemptRepository) upsertOnce(ctx context.Context, attempt *models.PaymentAttempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PaymentAttempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("idempotency_key = ?", attempt.IdempotencyKey).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(attempt).Error
		}
		if err != nil {
			return err
		}

		MergeExisting(attempt, &existing)

		updates := map[string]interface{}{
			"method":           attempt.Method,
			"amount":           attempt.Amount,
			"installments":     attempt.Installments,
			"status":           attempt.Status,
			"status_detail":    attempt.StatusDetail,
			"response_payload": attempt.ResponsePayload,
			"updated_at":       time.Now(),
		}
		if attempt.ProviderID() != "" {
			updates["provider_payment_id"] = attempt.ProviderID()
		}
		if err := tx.Model(&models.PaymentAttempt{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", existing.ID).First(attempt).Error
	})
}

func (r *gormAttemptRepository) UpdateByProviderPaymentID(ctx context.Context, providerPaymentID string, upd AttemptUpdate) (*models.PaymentAttempt, error) {
	return r.updateWhere(ctx, "provider_payment_id = ?", providerPaymentID, upd)
}

func (r *gormAttemptRepository) UpdateByIdempotencyKey(ctx context.Context, key string, upd AttemptUpdate) (*models.PaymentAttempt, error) {
	return r.updateWhere(ctx, "idempotency_key = ?", key, upd)
}

func (r *gormAttemptRepository) updateWhere(ctx context.Context, query string, arg string, upd AttemptUpdate) (*models.PaymentAttempt, error) {
	var out models.PaymentAttempt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(query, arg).
			Order("created_at ASC").
			First(&out).Error; err != nil {
			return err
		}
		ApplyUpdate(&out, upd)

		updates := map[string]interface{}{
			"status":        out.Status,
			"status_detail": out.StatusDetail,
			"updated_at":    time.Now(),
		}
		if len(upd.ResponsePayload) > 0 {
			updates["response_payload"] = out.ResponsePayload
		}
		if upd.ProviderPaymentID != "" {
			updates["provider_payment_id"] = upd.ProviderPaymentID
		}
		return tx.Model(&models.PaymentAttempt{}).Where("id = ?", out.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MergeExisting prepares attempt to overwrite the stored row: it takes over
// the row id and a provider payment id the caller does not know yet, and an
// approved row keeps its status and detail.
func MergeExisting(attempt, existing *models.PaymentAttempt) {
	attempt.ID = existing.ID
	if attempt.ProviderID() == "" {
		attempt.ProviderPaymentID = existing.ProviderPaymentID
	}
	if existing.IsApproved() && attempt.Status != models.AttemptStatusApproved {
		attempt.Status = existing.Status
		attempt.StatusDetail = existing.StatusDetail
	}
}

// ApplyUpdate merges a reconciliation update into an attempt. Approved
// attempts keep their status and detail; only the payload is refreshed.
func ApplyUpdate(a *models.PaymentAttempt, upd AttemptUpdate) {
	next := models.NextAttemptStatus(a.Status, upd.Status)
	if !(a.IsApproved() && upd.Status != models.AttemptStatusApproved) {
		a.StatusDetail = upd.StatusDetail
	}
	a.Status = next
	if len(upd.ResponsePayload) > 0 {
		a.ResponsePayload = datatypes.JSON(upd.ResponsePayload)
	}
	if upd.ProviderPaymentID != "" {
		id := upd.ProviderPaymentID
		a.ProviderPaymentID = &id
	}
}

type gormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a webhook event repository backed by GORM.
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &gormWebhookEventRepository{db: db}
}

func (r *gormWebhookEventRepository) FindByEventID(ctx context.Context, provider, eventID string) (*models.WebhookEvent, error) {
	var ev models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		First(&ev).Error
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *gormWebhookEventRepository) CreateIfNotExists(ctx context.Context, event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	db := r.db.WithContext(ctx)
	tx := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormWebhookEventRepository) MarkProcessed(ctx context.Context, id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
