package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification event status constants.
const (
	NotificationEventQueued    = "queued"
	NotificationEventProcessed = "processed"
	NotificationEventFailed    = "failed"
)

// Campaign audiences.
const (
	AudienceAdmins = "admins"
	AudienceAll    = "all"
)

// Campaign status constants.
const (
	CampaignStatusCreated    = "created"
	CampaignStatusDispatched = "dispatched"
)

// NotificationEvent is a queued domain event (order created, status changed, ...)
// waiting to be turned into a notification campaign. Rows are written by
// upstream domain logic. A queue pass claims rows via ClaimToken before
// working on them and flips the status exactly once.
type NotificationEvent struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	EventType    string         `gorm:"type:varchar(64);not null;index" json:"event_type"`
	Payload      datatypes.JSON `json:"payload"`
	Status       string         `gorm:"type:varchar(20);not null;default:'queued';index:idx_notification_events_status_created,priority:1" json:"status"`
	ClaimToken   string         `gorm:"type:char(36);not null;default:'';index" json:"-"`
	ClaimedAt    *time.Time     `gorm:"type:timestamp;default:null" json:"-"`
	ProcessedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index:idx_notification_events_status_created,priority:2" json:"created_at"`
}

// NotificationCampaign is a push campaign created from a notification event.
type NotificationCampaign struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	Title         string     `gorm:"type:varchar(200);not null" json:"title"`
	Body          string     `gorm:"type:text;not null" json:"body"`
	Audience      string     `gorm:"type:varchar(20);not null;index" json:"audience"`
	SourceEventID *uint      `gorm:"index" json:"source_event_id,omitempty"`
	Status        string     `gorm:"type:varchar(20);not null;default:'created'" json:"status"`
	DispatchedAt  *time.Time `gorm:"type:timestamp;default:null" json:"dispatched_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *NotificationCampaign) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
