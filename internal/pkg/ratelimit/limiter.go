// Package ratelimit implements the fixed-window limiter consulted by every
// public handler before it mutates state.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/app/models"
	"github.com/ManuelReschke/StoreFox/internal/pkg/apperror"
)

// Limiter consumes one unit from the (bucket, key) window and reports whether
// the call is within limit.
type Limiter interface {
	Allow(ctx context.Context, bucket, key string, limit, windowMinutes int) (bool, error)
}

// WindowRepository loads and stores fixed window counters.
type WindowRepository interface {
	Find(ctx context.Context, bucket, key string) (*models.RateLimitWindow, error)
	Save(ctx context.Context, w *models.RateLimitWindow) error
}

// DBLimiter is a fixed window counter persisted through a WindowRepository.
// Read and write are not atomic: concurrent bursts on the same key may admit
// a few calls over the limit.
type DBLimiter struct {
	repo WindowRepository
	now  func() time.Time
}

func NewDBLimiter(repo WindowRepository) *DBLimiter {
	return &DBLimiter{repo: repo, now: time.Now}
}

// NewDBLimiterFromDB creates a limiter backed by the rate_limit_windows table.
func NewDBLimiterFromDB(db *gorm.DB) *DBLimiter {
	return NewDBLimiter(NewRepository(db))
}

func (l *DBLimiter) Allow(ctx context.Context, bucket, key string, limit, windowMinutes int) (bool, error) {
	now := l.now()
	w, err := l.repo.Find(ctx, bucket, key)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
		w = &models.RateLimitWindow{
			Bucket:          bucket,
			Key:             key,
			Count:           1,
			WindowStartedAt: now,
		}
		if err := l.repo.Save(ctx, w); err != nil {
			return false, err
		}
		return 1 <= limit, nil
	}

	window := time.Duration(windowMinutes) * time.Minute
	allowed := true
	if now.Sub(w.WindowStartedAt) < window {
		w.Count++
		allowed = w.Count <= limit
	} else {
		w.Count = 1
		w.WindowStartedAt = now
	}

	// Persist even on denial so the window keeps counting.
	if err := l.repo.Save(ctx, w); err != nil {
		return false, err
	}
	return allowed, nil
}

// Enforce consumes one unit for rule and converts a denial or a store failure
// into a RateLimited error. Store failures deny.
func Enforce(ctx context.Context, l Limiter, bucket, key string, rule Rule) error {
	if key == "" {
		key = "unknown"
	}
	allowed, err := l.Allow(ctx, bucket, key, rule.Limit, rule.WindowMinutes)
	if err != nil {
		log.Errorf("[RateLimit] %s: store error, denying: %v", bucket, err)
		return apperror.RateLimited(bucket)
	}
	if !allowed {
		log.Warnf("[RateLimit] %s: limit %d/%dmin exceeded for %s", bucket, rule.Limit, rule.WindowMinutes, key)
		return apperror.RateLimited(bucket)
	}
	return nil
}
