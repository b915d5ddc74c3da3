package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// MutationRateLimit caps balance-changing requests per user (falling back to
// client IP) using a fixed one-minute Redis window. Read traffic is exempt.
func MutationRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		subject := c.Params("userId")
		if subject == "" {
			var req struct {
				UserID     string `json:"user_id"`
				FromUserID string `json:"from_user_id"`
			}
			_ = c.BodyParser(&req)
			subject = strings.TrimSpace(req.UserID)
			if subject == "" {
				subject = strings.TrimSpace(req.FromUserID)
			}
		}
		if subject == "" {
			subject = c.IP()
		}

		key := "seer:rl:mutation:" + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many balance operations, try again later")
		}
		return c.Next()
	}
}
