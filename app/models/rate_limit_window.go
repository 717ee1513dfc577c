package models

import "time"

// RateLimitWindow is one fixed window counter per (bucket, key).
type RateLimitWindow struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Bucket          string    `gorm:"type:varchar(64);not null;index:ux_rate_limit_windows_bucket_key,unique,priority:1" json:"bucket"`
	Key             string    `gorm:"type:varchar(191);not null;index:ux_rate_limit_windows_bucket_key,unique,priority:2" json:"key"`
	Count           int       `gorm:"not null;default:0" json:"count"`
	WindowStartedAt time.Time `gorm:"not null" json:"window_started_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
