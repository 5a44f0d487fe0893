package repository

import (
	"context"
	"fmt"
	"time"
)

// RateLimitRepository — счётчик фиксированного окна на идентичность.
// Ключ привязан к индексу окна и сам истекает по TTL, поэтому на границе
// окон возможен всплеск до 2x лимита — принятое приближение.
type RateLimitRepository interface {
	Hit(ctx context.Context, identity string, limit int64, window time.Duration) (allowed bool, remaining int64, err error)
}

type rateLimitRepository struct {
	redis *RedisDB
}

func NewRateLimitRepository(redis *RedisDB) RateLimitRepository {
	return &rateLimitRepository{redis: redis}
}

func (r *rateLimitRepository) Hit(ctx context.Context, identity string, limit int64, window time.Duration) (bool, int64, error) {
	windowIndex := time.Now().UnixMilli() / window.Milliseconds()
	key := fmt.Sprintf("ratelimit:%s:%d", identity, windowIndex)

	count, err := r.redis.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment rate counter: %w", err)
	}

	// Первый хит в окне выставляет TTL, дальше ключ доживает сам
	if count == 1 {
		if err := r.redis.Client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to expire rate counter: %w", err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, nil
}
