package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/StoreFox/app/controllers"
	"github.com/ManuelReschke/StoreFox/internal/pkg/cache"
	"github.com/ManuelReschke/StoreFox/internal/pkg/env"
)

// globalLimiter is a coarse per-IP flood guard in front of the public
// routes. Business limits per bucket are enforced by the handlers.
func globalLimiter(storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        env.GetEnvInt("GLOBAL_RATE_LIMIT_MAX", 120),
		Expiration: time.Minute,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return controllers.ClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":      false,
				"error":   "rate_limited",
				"message": "too many requests",
			})
		},
	})
}

// NewLimiterStorage shares the cache connection settings but keeps limiter
// keys in a separate database.
func NewLimiterStorage() fiber.Storage {
	return redisstorage.New(limiterStorageConfig(cache.GetClient().Options()))
}

func limiterStorageConfig(opts *redis.Options) redisstorage.Config {
	host, port := "127.0.0.1", 6379
	if opts.Addr != "" {
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = opts.Addr
		}
	}

	return redisstorage.Config{
		Host:     host,
		Port:     port,
		Username: opts.Username,
		Password: opts.Password,
		Database: env.GetEnvInt("LIMITER_CACHE_DB", 3),
		Reset:    false,
	}
}
