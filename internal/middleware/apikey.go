package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyConfig — конфигурация аутентификации по API ключу
type APIKeyConfig struct {
	// ValidKeys — карта валидных ключей к имени владельца
	ValidKeys map[string]string
	// HeaderName — заголовок с ключом (по умолчанию X-API-Key)
	HeaderName string
	// Optional — если true, запрос без ключа проходит как анонимный
	// и непривилегированный
	Optional bool
}

const defaultHeaderName = "X-API-Key"

// Ключи контекста gin
const (
	ctxKeyValidated = "api_key_validated"
	ctxKeyOwner     = "api_key_owner"
	ctxKeyValue     = "api_key"
)

// APIKey — middleware аутентификации по API ключу.
// Провалидированный ключ делает вызывающего привилегированным
// и даёт ему владельческую идентичность.
type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = defaultHeaderName
	}
	return &APIKey{config: config}
}

func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(ak.config.HeaderName)

		// Запасной вариант: Authorization с Bearer-схемой
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ctxKeyValidated, false)
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ: заголовок X-API-Key или Authorization: Bearer",
			})
			c.Abort()
			return
		}

		// Сравнение за константное время
		valid := false
		var owner string
		for validKey, name := range ak.config.ValidKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
				valid = true
				owner = name
				break
			}
		}

		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			c.Abort()
			return
		}

		c.Set(ctxKeyValidated, true)
		c.Set(ctxKeyOwner, owner)
		c.Set(ctxKeyValue, apiKey)

		c.Next()
	}
}

// RequireAPIKey — middleware, требующий валидный ключ
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// OptionalAPIKey — middleware, принимающий ключ опционально
func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys, Optional: true}).Middleware()
}

// GetAPIKeyFromContext извлекает сам ключ из контекста
func GetAPIKeyFromContext(c *gin.Context) (string, bool) {
	key, exists := c.Get(ctxKeyValue)
	if !exists {
		return "", false
	}
	return key.(string), true
}

// CallerIdentity возвращает владельца (имя ключа) и признак привилегий.
// Анонимный вызывающий — nil владелец без привилегий.
func CallerIdentity(c *gin.Context) (*string, bool) {
	validated, exists := c.Get(ctxKeyValidated)
	if !exists || !validated.(bool) {
		return nil, false
	}

	owner, _ := c.Get(ctxKeyOwner)
	name := owner.(string)
	return &name, true
}
