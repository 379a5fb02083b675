package middleware

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"edulens-auth/logger"
	"edulens-auth/types"
)

// ErrStoreUnavailable marks a counting-store failure. The middleware's
// fallback policy on this error is to admit the request: availability of
// the service beats strict quota enforcement.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// Bucket is one named admission-control quota.
type Bucket struct {
	Name   string
	Points int
	Window time.Duration
}

// Quotas per route class. Auth routes get the strictest bucket.
var (
	bucketGeneral = Bucket{Name: "rl_general", Points: 100, Window: time.Minute}
	bucketAuth    = Bucket{Name: "rl_auth", Points: 5, Window: 5 * time.Minute}
	bucketSearch  = Bucket{Name: "rl_search", Points: 50, Window: time.Minute}
	bucketUpload  = Bucket{Name: "rl_upload", Points: 10, Window: 5 * time.Minute}
)

// RateLimiter enforces per-IP fixed-window quotas backed by Redis.
type RateLimiter struct {
	rdb redis.UniversalClient
}

// NewRateLimiter creates a limiter. A nil client disables limiting
// entirely (Redis skipped at startup).
func NewRateLimiter(rdb redis.UniversalClient) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Handle is the admission-control middleware for all routes.
func (rl *RateLimiter) Handle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rl.rdb == nil {
			return c.Next()
		}

		bucket := classify(c.Path())
		key := bucket.Name + ":" + c.IP()

		count, ttl, err := rl.consume(c, key, bucket.Window)
		if err != nil {
			// Fail open.
			logger.Warning("Rate limiter store unavailable, admitting request: " + err.Error())
			return c.Next()
		}

		remaining := int64(bucket.Points) - count
		if remaining < 0 {
			remaining = 0
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Points))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		c.Set("X-RateLimit-Reset", time.Now().Add(ttl).UTC().Format(time.RFC3339))

		if count > int64(bucket.Points) {
			retryAfter := int(math.Ceil(ttl.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(types.ApiResponse{
				Success: false,
				Message: "Too many requests, please try again later.",
				Status:  fiber.StatusTooManyRequests,
			})
		}

		return c.Next()
	}
}

// consume increments the window counter and reports the current count plus
// time until the window resets.
func (rl *RateLimiter) consume(c *fiber.Ctx, key string, window time.Duration) (int64, time.Duration, error) {
	ctx := c.Context()

	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set by the first hit only.
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	ttl, err := rl.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl < 0 {
		// The key lost its TTL (crash between INCR and EXPIRE); re-arm it
		// so the window still resets instead of counting forever.
		if err := rl.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		ttl = window
	}

	return count, ttl, nil
}

func classify(path string) Bucket {
	switch {
	case strings.HasPrefix(path, "/api/auth"):
		return bucketAuth
	case strings.Contains(path, "/search"):
		return bucketSearch
	case strings.Contains(path, "/upload"):
		return bucketUpload
	default:
		return bucketGeneral
	}
}
