package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// DefaultClaimTTL is how long a claimed event stays invisible to other
// passes. A pass that dies mid-batch leaves its claims to expire.
const DefaultClaimTTL = 10 * time.Minute

// Repository provides DB operations used by the queue processor.
type Repository interface {
	// ClaimQueued reserves up to limit queued events for the calling pass.
	// Events claimed by another live pass are never returned.
	ClaimQueued(ctx context.Context, limit int) ([]models.NotificationEvent, error)
	CreateCampaign(ctx context.Context, campaign *models.NotificationCampaign) error
	MarkCampaignDispatched(ctx context.Context, campaignID string) error
	MarkProcessed(ctx context.Context, eventID uint) error
	MarkFailed(ctx context.Context, eventID uint, errorMessage string) error
}

type gormRepository struct {
	db       *gorm.DB
	claimTTL time.Duration
}

// NewRepository creates a notification repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db, claimTTL: DefaultClaimTTL}
}

func (r *gormRepository) ClaimQueued(ctx context.Context, limit int) ([]models.NotificationEvent, error) {
	token := uuid.New().String()
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.NotificationEvent{}).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", models.NotificationEventQueued).
			Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-r.claimTTL)).
			Order("created_at ASC").
			Order("id ASC").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.NotificationEvent{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"claim_token": token,
				"claimed_at":  &now,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	var events []models.NotificationEvent
	err = r.db.WithContext(ctx).
		Where("claim_token = ? AND status = ?", token, models.NotificationEventQueued).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *gormRepository) CreateCampaign(ctx context.Context, campaign *models.NotificationCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *gormRepository) MarkCampaignDispatched(ctx context.Context, campaignID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.NotificationCampaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]interface{}{
			"status":        models.CampaignStatusDispatched,
			"dispatched_at": &now,
		}).Error
}

func (r *gormRepository) MarkProcessed(ctx context.Context, eventID uint) error {
	return r.setStatus(ctx, eventID, models.NotificationEventProcessed, "")
}

func (r *gormRepository) MarkFailed(ctx context.Context, eventID uint, errorMessage string) error {
	return r.setStatus(ctx, eventID, models.NotificationEventFailed, errorMessage)
}

func (r *gormRepository) setStatus(ctx context.Context, eventID uint, status, errorMessage string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.NotificationEvent{}).
		Where("id = ? AND status = ?", eventID, models.NotificationEventQueued).
		Updates(map[string]interface{}{
			"status":        status,
			"processed_at":  &now,
			"error_message": errorMessage,
		}).Error
}
