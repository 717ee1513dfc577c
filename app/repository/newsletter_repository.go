package repository

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/StoreFox/app/models"
)

// EventNewsletterSubscribed is queued for every new subscriber.
const EventNewsletterSubscribed = "newsletter_subscribed"

type newsletterRepository struct {
	db *gorm.DB
}

func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &newsletterRepository{db: db}
}

// Subscribe stores the subscriber and, for a new email, queues a
// newsletter_subscribed notification event in the same transaction.
func (r *newsletterRepository) Subscribe(sub *models.NewsletterSubscriber) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.NewsletterSubscriber
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("email = ?", sub.Email).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err == nil {
			updates := map[string]interface{}{"updated_at": time.Now()}
			if sub.Name != "" {
				updates["name"] = sub.Name
			}
			if sub.Source != "" {
				updates["source"] = sub.Source
			}
			if err := tx.Model(&existing).Updates(updates).Error; err != nil {
				return err
			}
			return tx.First(sub, existing.ID).Error
		}

		if sub.SubscribedAt.IsZero() {
			sub.SubscribedAt = time.Now()
		}
		if err := tx.Create(sub).Error; err != nil {
			return err
		}
		created = true

		payload, _ := json.Marshal(map[string]string{"email": sub.Email, "name": sub.Name, "source": sub.Source})
		return tx.Create(&models.NotificationEvent{
			EventType: EventNewsletterSubscribed,
			Payload:   datatypes.JSON(payload),
			Status:    models.NotificationEventQueued,
		}).Error
	})
	return created, err
}
