package ratelimit

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// NewFromEnv picks the limiter backend from RATE_LIMIT_BACKEND (db|redis).
func NewFromEnv(db *gorm.DB, client *redis.Client) Limiter {
	backend := strings.ToLower(strings.TrimSpace(env.GetEnv("RATE_LIMIT_BACKEND", "db")))
	if backend == "redis" && client != nil {
		log.Info("[RateLimit] Using redis backend")
		return NewRedisLimiter(client)
	}
	log.Info("[RateLimit] Using database backend")
	return NewDBLimiterFromDB(db)
}
