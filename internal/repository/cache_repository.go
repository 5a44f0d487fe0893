package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss возвращается, когда записи нет в кэше. Отсутствие записи
// не означает отсутствие ссылки — источником истины остаётся БД.
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository — денормализованная проекция ссылки в Redis-хэше
// под ключом link:<code>. TTL ключа не связан со сроком жизни самой ссылки.
type CacheRepository interface {
	Get(ctx context.Context, code string) (*models.Link, error)
	Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error
	IncrementClicks(ctx context.Context, code string) error
	PatchExpiry(ctx context.Context, code string, expiresAt *time.Time) error
	Delete(ctx context.Context, code string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	fields, err := r.redis.Client.HGetAll(ctx, r.key(code)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrCacheMiss
	}

	link := &models.Link{ShortCode: code}
	link.OriginalURL = fields["original_url"]
	link.Clicks, _ = strconv.ParseInt(fields["clicks"], 10, 64)
	link.Flagged, _ = strconv.ParseBool(fields["flagged"])

	if owner := fields["owner"]; owner != "" {
		link.Owner = &owner
	}
	if reason := fields["flag_reason"]; reason != "" {
		link.FlagReason = &reason
	}
	if raw := fields["expires_at"]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cached expiry: %w", err)
		}
		link.ExpiresAt = &t
	}

	return link, nil
}

func (r *cacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	fields := map[string]interface{}{
		"original_url": link.OriginalURL,
		"clicks":       strconv.FormatInt(link.Clicks, 10),
		"flagged":      strconv.FormatBool(link.Flagged),
		"owner":        "",
		"flag_reason":  "",
		"expires_at":   "",
	}
	if link.Owner != nil {
		fields["owner"] = *link.Owner
	}
	if link.FlagReason != nil {
		fields["flag_reason"] = *link.FlagReason
	}
	if link.ExpiresAt != nil {
		fields["expires_at"] = link.ExpiresAt.Format(time.RFC3339Nano)
	}

	pipe := r.redis.Client.TxPipeline()
	pipe.HSet(ctx, r.key(code), fields)
	pipe.Expire(ctx, r.key(code), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}

// IncrementClicks увеличивает счётчик только у существующего ключа:
// HINCRBY по отсутствующему ключу создал бы обрубок записи без полей.
func (r *cacheRepository) IncrementClicks(ctx context.Context, code string) error {
	exists, err := r.redis.Client.Exists(ctx, r.key(code)).Result()
	if err != nil {
		return fmt.Errorf("failed to check cache key: %w", err)
	}
	if exists == 0 {
		return nil
	}

	return r.redis.Client.HIncrBy(ctx, r.key(code), "clicks", 1).Err()
}

// PatchExpiry правит одно поле на месте, не создавая ключ заново.
func (r *cacheRepository) PatchExpiry(ctx context.Context, code string, expiresAt *time.Time) error {
	exists, err := r.redis.Client.Exists(ctx, r.key(code)).Result()
	if err != nil {
		return fmt.Errorf("failed to check cache key: %w", err)
	}
	if exists == 0 {
		return nil
	}

	value := ""
	if expiresAt != nil {
		value = expiresAt.Format(time.RFC3339Nano)
	}

	return r.redis.Client.HSet(ctx, r.key(code), "expires_at", value).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, code string) error {
	if err := r.redis.Client.Del(ctx, r.key(code)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

func (r *cacheRepository) key(code string) string {
	return "link:" + code
}
