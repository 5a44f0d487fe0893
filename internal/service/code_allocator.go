package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/nkuznetsov/linkcut/internal/repository"
)

// Константы генерации кодов
const (
	codeLength  = 7
	maxAttempts = 5
	// Алфавит без неоднозначных символов (0/O, 1/l/I)
	codeAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// ErrAllocationExhausted — не удалось занять уникальный код за maxAttempts
// попыток. Фатальная ошибка аллокации, вызывающему следует повторить позже.
var ErrAllocationExhausted = errors.New("не удалось выделить уникальный короткий код")

// CodeAllocator выделяет короткие коды через атомарный claim в ReservationSet.
type CodeAllocator struct {
	reservations repository.ReservationRepository
}

func NewCodeAllocator(reservations repository.ReservationRepository) *CodeAllocator {
	return &CodeAllocator{reservations: reservations}
}

// Generate рисует случайный код и пытается атомарно занять его.
// Проигрыш гонки — не ошибка, просто новая попытка с новым кодом.
func (a *CodeAllocator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to draw code: %w", err)
		}

		claimed, err := a.reservations.Claim(ctx, code)
		if err != nil {
			return "", err
		}
		if claimed {
			return code, nil
		}
	}

	return "", ErrAllocationExhausted
}

// ReserveCustom атомарно занимает код, выбранный пользователем.
// false — код уже занят кем-то другим.
func (a *CodeAllocator) ReserveCustom(ctx context.Context, code string) (bool, error) {
	return a.reservations.Claim(ctx, code)
}

// IsAvailable — неавторитетная проверка для подсказок UI.
// На неё нельзя полагаться для корректности: между проверкой и claim
// возможна гонка, авторитетен только сам claim.
func (a *CodeAllocator) IsAvailable(ctx context.Context, code string) (bool, error) {
	claimed, err := a.reservations.IsClaimed(ctx, code)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release снимает резервацию при откате вставки или блокировке политикой.
func (a *CodeAllocator) Release(ctx context.Context, code string) error {
	return a.reservations.Release(ctx, code)
}

func randomCode() (string, error) {
	result := make([]byte, codeLength)
	for i := 0; i < codeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		result[i] = codeAlphabet[num.Int64()]
	}
	return string(result), nil
}
