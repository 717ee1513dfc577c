package repository

import (
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	TouchAPIKeyUsage(id uint) error
}

// PushTokenRepository stores device registrations
type PushTokenRepository interface {
	Upsert(token *models.PushToken) error
	CountByPlatform() (map[string]int64, error)
}

// NewsletterRepository stores newsletter subscriptions
type NewsletterRepository interface {
	// Subscribe inserts the subscriber or refreshes name/source of an existing
	// one. created reports whether the email was new.
	Subscribe(sub *models.NewsletterSubscriber) (created bool, err error)
}

// Repositories holds all repository instances
type Repositories struct {
	User       UserRepository
	PushToken  PushTokenRepository
	Newsletter NewsletterRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		PushToken:  NewPushTokenRepository(db),
		Newsletter: NewNewsletterRepository(db),
	}
}
