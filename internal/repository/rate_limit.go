package repository

import (
	"context"
	"time"

	"classroom_chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "chat:ratelimit:"

type RateLimitRepository interface {
	// Hit увеличивает счетчик окна и возвращает его новое значение
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

func (r *rateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	fullKey := rateLimitKeyPrefix + key

	// INCR и EXPIRE NX одним запросом, чтобы ключ не остался без TTL
	pipe := r.redis.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return 0, err
	}

	return incr.Val(), nil
}
