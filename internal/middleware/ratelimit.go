package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"go.uber.org/zap"
)

// RateLimiterConfig — параметры фиксированного окна
type RateLimiterConfig struct {
	Requests int64         // лимит запросов на окно
	Window   time.Duration // ширина окна
}

// RateLimiter — middleware фиксированного окна поверх атомарного счётчика
// в Redis. Ключ окна сам истекает по TTL; на границе окон допустим всплеск
// до двойного лимита.
type RateLimiter struct {
	store  repository.RateLimitRepository
	config RateLimiterConfig
	logger *zap.Logger
}

func NewRateLimiter(store repository.RateLimitRepository, config RateLimiterConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Middleware ограничивает запросы по идентичности вызывающего:
// API ключ, если он провалидирован, иначе IP клиента.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		if key, ok := GetAPIKeyFromContext(c); ok {
			identity = key
		}

		allowed, remaining, err := rl.store.Hit(c.Request.Context(), identity, rl.config.Requests, rl.config.Window)
		if err != nil {
			// Отказ счётчика не должен ронять создание ссылок — пропускаем
			rl.logger.Warn("Счётчик rate limit недоступен, запрос пропущен", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "rate_limit_exceeded",
				"message":   "Слишком много запросов, попробуйте позже",
				"remaining": remaining,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
