package ratelimit

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/StoreFox/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a window repository backed by GORM.
func NewRepository(db *gorm.DB) WindowRepository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Find(ctx context.Context, bucket, key string) (*models.RateLimitWindow, error) {
	var w models.RateLimitWindow
	err := r.db.WithContext(ctx).
		Where("bucket = ? AND `key` = ?", bucket, key).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *gormRepository) Save(ctx context.Context, w *models.RateLimitWindow) error {
	if w.ID != 0 {
		return r.db.WithContext(ctx).Model(&models.RateLimitWindow{}).
			Where("id = ?", w.ID).
			Updates(map[string]interface{}{
				"count":             w.Count,
				"window_started_at": w.WindowStartedAt,
			}).Error
	}

	// First touch; a concurrent first touch on the same key counts on top.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "bucket"},
			{Name: "key"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("`count` + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(w).Error
}
