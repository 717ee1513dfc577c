package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/StoreFox/app/models"
)

type pushTokenRepository struct {
	db *gorm.DB
}

func NewPushTokenRepository(db *gorm.DB) PushTokenRepository {
	return &pushTokenRepository{db: db}
}

// Upsert registers a token or refreshes platform, user and last seen time.
func (r *pushTokenRepository) Upsert(token *models.PushToken) error {
	if token.LastSeenAt.IsZero() {
		token.LastSeenAt = time.Now()
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"platform",
			"user_id",
			"last_seen_at",
			"updated_at",
		}),
	}).Create(token).Error; err != nil {
		return err
	}

	return r.db.Where("token = ?", token.Token).First(token).Error
}

// CountByPlatform returns the number of registered tokens per platform.
func (r *pushTokenRepository) CountByPlatform() (map[string]int64, error) {
	var rows []struct {
		Platform string
		Total    int64
	}
	err := r.db.Model(&models.PushToken{}).
		Select("platform, COUNT(*) AS total").
		Group("platform").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Platform] = row.Total
	}
	return out, nil
}
