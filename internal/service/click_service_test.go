package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"github.com/nkuznetsov/linkcut/internal/service"
	"github.com/nkuznetsov/linkcut/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestClickService_Increment проверяет инкремент в БД и в кэше
func TestClickService_Increment(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	clicks := service.NewClickService(linkRepo, cacheRepo, zap.NewNop())

	link := &models.Link{ShortCode: "counted", OriginalURL: "https://example.com"}
	linkRepo.Seed(link)
	require.NoError(t, cacheRepo.Set(context.Background(), "counted", link, time.Hour))

	require.NoError(t, clicks.Increment(context.Background(), "counted"))
	require.NoError(t, clicks.Increment(context.Background(), "counted"))

	stored, err := linkRepo.GetByShortCode(context.Background(), "counted")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Clicks)

	cached, err := cacheRepo.Get(context.Background(), "counted")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cached.Clicks)
}

// TestClickService_Increment_NotFound проверяет ошибку для неизвестного кода
func TestClickService_Increment_NotFound(t *testing.T) {
	clicks := service.NewClickService(
		mocks.NewMockLinkRepository(), mocks.NewMockCacheRepository(), zap.NewNop(),
	)

	err := clicks.Increment(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

// TestClickService_Increment_Expired проверяет, что клик по истёкшей ссылке
// не считается
func TestClickService_Increment_Expired(t *testing.T) {
	linkRepo := mocks.NewMockLinkRepository()
	clicks := service.NewClickService(linkRepo, mocks.NewMockCacheRepository(), zap.NewNop())

	past := time.Now().Add(-time.Hour)
	linkRepo.Seed(&models.Link{
		ShortCode:   "expired",
		OriginalURL: "https://example.com",
		ExpiresAt:   &past,
	})

	err := clicks.Increment(context.Background(), "expired")
	assert.ErrorIs(t, err, repository.ErrLinkExpired)

	stored, err := linkRepo.GetByShortCode(context.Background(), "expired")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Clicks)
}
