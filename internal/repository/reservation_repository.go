package repository

import (
	"context"
	"fmt"
)

// reservationSetKey — единое множество занятых коротких кодов.
// Является надмножеством кодов в таблице links: код резервируется
// до durable-вставки и освобождается при откате.
const reservationSetKey = "shortcodes"

// ReservationRepository — атомарный claim кодов через SADD.
// Только Claim авторитетен: IsClaimed пригоден лишь для подсказок UI,
// между проверкой и claim возможна гонка.
type ReservationRepository interface {
	Claim(ctx context.Context, code string) (bool, error)
	IsClaimed(ctx context.Context, code string) (bool, error)
	Release(ctx context.Context, code string) error
}

type reservationRepository struct {
	redis *RedisDB
}

func NewReservationRepository(redis *RedisDB) ReservationRepository {
	return &reservationRepository{redis: redis}
}

// Claim выполняет атомарный add-if-absent. true — код достался нам.
func (r *reservationRepository) Claim(ctx context.Context, code string) (bool, error) {
	added, err := r.redis.Client.SAdd(ctx, reservationSetKey, code).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim code: %w", err)
	}
	return added == 1, nil
}

func (r *reservationRepository) IsClaimed(ctx context.Context, code string) (bool, error) {
	claimed, err := r.redis.Client.SIsMember(ctx, reservationSetKey, code).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}
	return claimed, nil
}

// Release снимает резервацию. Вызывается на каждом обработанном откате;
// если процесс упал между claim и вставкой, код остаётся занятым навсегда —
// принятая утечка.
func (r *reservationRepository) Release(ctx context.Context, code string) error {
	if err := r.redis.Client.SRem(ctx, reservationSetKey, code).Err(); err != nil {
		return fmt.Errorf("failed to release code: %w", err)
	}
	return nil
}
