package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type NewsletterSubscriber struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"email" validate:"required,email,max=200"`
	Name         string    `gorm:"type:varchar(150);default:''" json:"name" validate:"max=150"`
	Source       string    `gorm:"type:varchar(50);default:'site'" json:"source" validate:"max=50"`
	SubscribedAt time.Time `gorm:"not null" json:"subscribed_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (n *NewsletterSubscriber) Validate() error {
	v := validator.New()
	return v.Struct(n)
}
