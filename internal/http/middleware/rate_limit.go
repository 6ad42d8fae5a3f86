package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig caps each IP at 100 funnel requests per hour.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Hour,
		KeyPrefix:   "ratelimit",
	}
}

// RateLimit creates a per-IP rate limiting middleware backed by Redis.
// When Redis is unreachable the middleware fails open.
func RateLimit(redisClient *redis.Client, cfg RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultRateLimitConfig().MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitConfig().Window
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRateLimitConfig().KeyPrefix
	}

	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		key := cfg.KeyPrefix + ":" + c.IP()

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			return c.Next()
		}

		if count == 1 {
			redisClient.Expire(ctx, key, cfg.Window)
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(cfg.Window).Unix(), 10))

		if count > int64(cfg.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}
