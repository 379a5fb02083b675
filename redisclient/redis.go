package redisclient

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"edulens-auth/logger"
)

// Connect builds the Redis client used by the rate limiter. Returns nil
// when Redis is skipped or unreachable; the limiter fails open on nil.
func Connect() redis.UniversalClient {
	if os.Getenv("SKIP_REDIS") == "true" {
		logger.Warning("Redis skipped (SKIP_REDIS=true), rate limiting disabled")
		return nil
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("Invalid REDIS_URL, rate limiting disabled", err)
		return nil
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Redis unreachable, rate limiting disabled", err)
		return nil
	}

	logger.Success("Redis connected")
	return client
}
