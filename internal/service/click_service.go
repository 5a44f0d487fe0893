package service

import (
	"context"
	"errors"

	"github.com/nkuznetsov/linkcut/internal/repository"
	"go.uber.org/zap"
)

// ClickService инкрементирует счётчик кликов в БД и в кэше.
// Одна и та же последовательность используется обработчиком webhook
// и синхронным fallback-путём при отказе диспетчеризации.
type ClickService interface {
	Increment(ctx context.Context, code string) error
}

type clickService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	logger    *zap.Logger
}

func NewClickService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	logger *zap.Logger,
) ClickService {
	return &clickService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
	}
}

// Increment выполняет транзакционный инкремент в БД (с перепроверкой срока
// жизни внутри транзакции) и затем best-effort инкремент поля в кэше.
// Клик по истёкшей ссылке не считается — это предупреждение, не ошибка.
func (s *clickService) Increment(ctx context.Context, code string) error {
	_, err := s.linkRepo.IncrementClicks(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkExpired) {
			s.logger.Warn("Клик по истёкшей ссылке, инкремент пропущен",
				zap.String("short_code", code),
			)
		}
		return err
	}

	// Кэш — производная копия; его рассинхронизация кратковременна и допустима
	if err := s.cacheRepo.IncrementClicks(ctx, code); err != nil {
		s.logger.Warn("Не удалось обновить счётчик в кэше",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}

	return nil
}
