package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"github.com/nkuznetsov/linkcut/internal/safety"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL    = errors.New("невалидный URL")
	ErrInvalidCode   = errors.New("невалидный кастомный код")
	ErrSafetyBlocked = errors.New("URL заблокирован политикой безопасности")
	ErrForbidden     = errors.New("нет прав на изменение ссылки")
)

// Константы сервиса
const (
	maxURLLength = 2048
	maxLinkTTL   = 365 * 24 * time.Hour
)

var customCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,12}$`)

// LinkService — оркестрация workflow создания, резолва и правки ссылок.
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	Resolve(ctx context.Context, code string) (*models.Link, error)
	GetLink(ctx context.Context, code string) (*models.Link, error)
	UpdateLink(ctx context.Context, code string, input *models.UpdateLinkInput) (*models.Link, error)
	DeleteLink(ctx context.Context, code string, owner *string, privileged bool) error
	Stats(ctx context.Context, code string) (*models.LinkStats, error)
}

type linkService struct {
	linkRepo   repository.LinkRepository
	cacheRepo  repository.CacheRepository
	allocator  *CodeAllocator
	classifier safety.Classifier
	dispatcher ClickDispatcher
	clicks     ClickService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

func NewLinkService(
	linkRepo repository.LinkRepository,
	cacheRepo repository.CacheRepository,
	allocator *CodeAllocator,
	classifier safety.Classifier,
	dispatcher ClickDispatcher,
	clicks ClickService,
	cacheTTL time.Duration,
	logger *zap.Logger,
) LinkService {
	return &linkService{
		linkRepo:   linkRepo,
		cacheRepo:  cacheRepo,
		allocator:  allocator,
		classifier: classifier,
		dispatcher: dispatcher,
		clicks:     clicks,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// CreateLink — workflow сокращения: нормализация URL, атомарная резервация
// кода, проверка безопасности, durable-вставка, прогрев кэша.
// Любой сбой после резервации обязан освободить код.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	normalized, err := normalizeURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	// Выделение или резервация короткого кода
	var shortCode string
	if input.CustomCode != nil && *input.CustomCode != "" {
		if !customCodePattern.MatchString(*input.CustomCode) {
			return nil, ErrInvalidCode
		}
		claimed, err := s.allocator.ReserveCustom(ctx, *input.CustomCode)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, repository.ErrCodeExists
		}
		shortCode = *input.CustomCode
	} else {
		shortCode, err = s.allocator.Generate(ctx)
		if err != nil {
			return nil, err
		}
	}

	// Проверка безопасности: классификатор fail-open, политика может блокировать
	verdict := s.classifier.Check(ctx, normalized)
	decision := safety.Decide(verdict, input.Privileged)
	if decision.ShouldBlock {
		s.release(ctx, shortCode)
		return nil, ErrSafetyBlocked
	}

	link := &models.Link{
		ShortCode:   shortCode,
		OriginalURL: normalized,
		Owner:       input.Owner,
		Flagged:     decision.Flagged,
		FlagReason:  decision.FlagReason,
		ExpiresAt:   expiryFromMinutes(input.ExpiresIn),
	}

	if err := s.linkRepo.Create(ctx, link); err != nil {
		// Вставка не прошла — резервация снимается, дубликат кода невозможен
		s.release(ctx, shortCode)
		return nil, err
	}

	// Прогрев кэша не критичен для создания
	if err := s.cacheRepo.Set(ctx, link.ShortCode, link, s.cacheTTL); err != nil {
		s.logger.Warn("Не удалось закэшировать ссылку",
			zap.String("short_code", link.ShortCode),
			zap.Error(err),
		)
	}

	return link, nil
}

// Resolve — cache-aside резолв с ленивой проверкой истечения.
// Истечение проверяется только здесь: фонового сборщика нет, истёкшие
// записи остаются в кэше до его собственного TTL и в БД до явного удаления.
func (s *linkService) Resolve(ctx context.Context, code string) (*models.Link, error) {
	cached, err := s.cacheRepo.Get(ctx, code)
	if err == nil {
		if cached.Expired() {
			// TTL не обновляем и запись не трогаем — её приберёт сам кэш
			return nil, repository.ErrLinkNotFound
		}
		s.dispatchClick(ctx, code)
		return cached, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		return nil, fmt.Errorf("resolve cache lookup: %w", err)
	}

	// Промах кэша: источник истины — БД
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.Expired() {
		return nil, repository.ErrLinkNotFound
	}

	// Починка кэша полной проекцией со свежим TTL
	if err := s.cacheRepo.Set(ctx, code, link, s.cacheTTL); err != nil {
		s.logger.Warn("Не удалось починить кэш",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}

	s.dispatchClick(ctx, code)
	return link, nil
}

// GetLink возвращает запись без учёта клика (админский/API просмотр).
func (s *linkService) GetLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.Expired() {
		return nil, repository.ErrLinkNotFound
	}
	return link, nil
}

// UpdateLink меняет код и/или срок жизни ссылки с проверкой владения.
// При смене кода кэш мигрирует: старый ключ удаляется, новый пишется
// с обновлённой проекцией; при смене только срока — правится одно поле.
func (s *linkService) UpdateLink(ctx context.Context, code string, input *models.UpdateLinkInput) (*models.Link, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := checkOwnership(link, input.Owner, input.Privileged); err != nil {
		return nil, err
	}

	codeChanged := input.CustomCode != nil && *input.CustomCode != link.ShortCode
	if codeChanged {
		newCode := *input.CustomCode
		if !customCodePattern.MatchString(newCode) {
			return nil, ErrInvalidCode
		}

		claimed, err := s.allocator.ReserveCustom(ctx, newCode)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return nil, repository.ErrCodeExists
		}

		if err := s.linkRepo.UpdateCode(ctx, link.ID, newCode); err != nil {
			s.release(ctx, newCode)
			return nil, err
		}

		oldCode := link.ShortCode
		link.ShortCode = newCode
		s.release(ctx, oldCode)

		if err := s.cacheRepo.Delete(ctx, oldCode); err != nil {
			s.logger.Warn("Не удалось удалить старый ключ кэша",
				zap.String("short_code", oldCode),
				zap.Error(err),
			)
		}
	}

	if input.ExpiresIn != nil {
		expiresAt := expiryFromMinutes(input.ExpiresIn)
		if err := s.linkRepo.UpdateExpiry(ctx, link.ID, expiresAt); err != nil {
			return nil, err
		}
		link.ExpiresAt = expiresAt

		if !codeChanged {
			if err := s.cacheRepo.PatchExpiry(ctx, link.ShortCode, expiresAt); err != nil {
				s.logger.Warn("Не удалось поправить срок жизни в кэше",
					zap.String("short_code", link.ShortCode),
					zap.Error(err),
				)
			}
		}
	}

	if codeChanged {
		if err := s.cacheRepo.Set(ctx, link.ShortCode, link, s.cacheTTL); err != nil {
			s.logger.Warn("Не удалось записать новый ключ кэша",
				zap.String("short_code", link.ShortCode),
				zap.Error(err),
			)
		}
	}

	return link, nil
}

// DeleteLink удаляет запись, её кэш и резервацию кода.
func (s *linkService) DeleteLink(ctx context.Context, code string, owner *string, privileged bool) error {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return err
	}

	if err := checkOwnership(link, owner, privileged); err != nil {
		return err
	}

	if err := s.cacheRepo.Delete(ctx, code); err != nil {
		s.logger.Warn("Не удалось удалить ключ кэша",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}

	if err := s.linkRepo.Delete(ctx, code); err != nil {
		return err
	}

	s.release(ctx, code)
	return nil
}

// Stats отдаёт счётчик и флаги из БД — авторитетного источника, не из кэша.
func (s *linkService) Stats(ctx context.Context, code string) (*models.LinkStats, error) {
	link, err := s.linkRepo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return &models.LinkStats{
		ShortCode:  link.ShortCode,
		Clicks:     link.Clicks,
		Flagged:    link.Flagged,
		FlagReason: link.FlagReason,
		ExpiresAt:  link.ExpiresAt,
	}, nil
}

// dispatchClick отправляет job в очередь; при отказе диспетчеризации
// инкремент выполняется синхронно — деградация, а не потеря клика.
func (s *linkService) dispatchClick(ctx context.Context, code string) {
	job := &models.ClickJob{
		Action:    models.ClickActionIncrement,
		ShortCode: code,
		Timestamp: time.Now().Unix(),
	}

	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Warn("Диспетчеризация клика не удалась, синхронный fallback",
			zap.String("short_code", code),
			zap.Error(err),
		)
		if err := s.clicks.Increment(ctx, code); err != nil {
			s.logger.Error("Fallback-инкремент клика не удался",
				zap.String("short_code", code),
				zap.Error(err),
			)
		}
	}
}

func (s *linkService) release(ctx context.Context, code string) {
	if err := s.allocator.Release(ctx, code); err != nil {
		// Утечка резервации: код останется занятым, но дубликат не выдадим
		s.logger.Error("Не удалось снять резервацию кода",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}
}

// normalizeURL валидирует URL и принудительно переводит его на https.
func normalizeURL(raw string) (string, error) {
	if raw == "" || len(raw) > maxURLLength {
		return "", ErrInvalidURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		parsed.Scheme = "https"
	default:
		return "", ErrInvalidURL
	}

	if parsed.Host == "" {
		return "", ErrInvalidURL
	}

	return parsed.String(), nil
}

// expiryFromMinutes переводит срок жизни в минутах в момент истечения.
// nil или неположительное значение — ссылка не истекает.
func expiryFromMinutes(minutes *int) *time.Time {
	if minutes == nil || *minutes <= 0 {
		return nil
	}

	ttl := time.Duration(*minutes) * time.Minute
	if ttl > maxLinkTTL {
		ttl = maxLinkTTL
	}

	t := time.Now().Add(ttl)
	return &t
}

func checkOwnership(link *models.Link, owner *string, privileged bool) error {
	if privileged {
		return nil
	}
	if link.Owner == nil || owner == nil || *link.Owner != *owner {
		return ErrForbidden
	}
	return nil
}
