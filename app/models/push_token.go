package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Push token platforms.
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
)

// PushToken is a device registration for push campaigns.
type PushToken struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Token      string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"token" validate:"required,min=10,max=255"`
	Platform   string    `gorm:"type:varchar(20);not null" json:"platform" validate:"required,oneof=android ios web"`
	UserID     *string   `gorm:"type:varchar(64);default:null;index" json:"user_id,omitempty" validate:"omitempty,max=64"`
	LastSeenAt time.Time `gorm:"not null" json:"last_seen_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *PushToken) Validate() error {
	v := validator.New()
	return v.Struct(p)
}
