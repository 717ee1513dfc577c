package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment method constants accepted by the charge endpoint.
const (
	PaymentMethodPix  = "pix"
	PaymentMethodCard = "card"
)

// Attempt status constants. Any other value is a provider passthrough status
// (e.g. "pending", "in_process", "refunded").
const (
	AttemptStatusPendingConfig = "pending_config"
	AttemptStatusProcessing    = "processing"
	AttemptStatusApproved      = "approved"
	AttemptStatusRejected      = "rejected"
)

// PaymentAttempt is the durable record of one logical charge request, keyed by
// the client supplied idempotency key. Rows are never deleted.
type PaymentAttempt struct {
	ID                string         `gorm:"type:char(36);primaryKey" json:"id"`
	IdempotencyKey    string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_payment_attempts_idempotency_key" json:"idempotency_key"`
	Method            string         `gorm:"type:varchar(10);not null" json:"method"`
	Amount            float64        `gorm:"type:decimal(12,2);not null" json:"amount"`
	Installments      int            `gorm:"not null;default:1" json:"installments"`
	ProviderPaymentID *string        `gorm:"type:varchar(64);default:null;index" json:"provider_payment_id,omitempty"`
	Status            string         `gorm:"type:varchar(40);not null;index" json:"status"`
	StatusDetail      string         `gorm:"type:varchar(100);default:''" json:"status_detail"`
	ResponsePayload   datatypes.JSON `json:"response_payload,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the opaque identifier on first persistence.
func (a *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// IsApproved reports whether the attempt reached terminal success.
func (a *PaymentAttempt) IsApproved() bool {
	return a != nil && a.Status == AttemptStatusApproved
}

// ProviderID returns the provider payment id or an empty string.
func (a *PaymentAttempt) ProviderID() string {
	if a == nil || a.ProviderPaymentID == nil {
		return ""
	}
	return *a.ProviderPaymentID
}

// NextAttemptStatus returns the status to store when a reconciliation reports
// incoming for a row currently in current. An approved row only accepts
// another approved status; everything else keeps approved.
func NextAttemptStatus(current, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if current == AttemptStatusApproved && incoming != AttemptStatusApproved {
		return current
	}
	if incoming == "" {
		if current == "" {
			return AttemptStatusProcessing
		}
		return current
	}
	return incoming
}
