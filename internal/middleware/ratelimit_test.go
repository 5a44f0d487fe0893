package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkuznetsov/linkcut/internal/middleware"
	"github.com/nkuznetsov/linkcut/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitedRouter(store *mocks.MockRateLimitRepository, limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	limiter := middleware.NewRateLimiter(store, middleware.RateLimiterConfig{
		Requests: limit,
		Window:   time.Minute,
	}, logger)

	router := gin.New()
	router.POST("/links", limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "created"})
	})
	return router
}

// TestRateLimiter_WithinLimit проверяет, что запросы в пределах лимита проходят
func TestRateLimiter_WithinLimit(t *testing.T) {
	store := mocks.NewMockRateLimitRepository()
	router := setupRateLimitedRouter(store, 5)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code, "запрос %d должен пройти", i+1)
	}
}

// TestRateLimiter_OverLimit проверяет, что N+1-й запрос в окне получает 429
func TestRateLimiter_OverLimit(t *testing.T) {
	store := mocks.NewMockRateLimitRepository()
	router := setupRateLimitedRouter(store, 3)

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, []int{
		http.StatusCreated,
		http.StatusCreated,
		http.StatusCreated,
		http.StatusTooManyRequests,
	}, statuses)
}

// TestRateLimiter_WindowReset проверяет, что после истечения окна лимит
// начинается заново
func TestRateLimiter_WindowReset(t *testing.T) {
	store := mocks.NewMockRateLimitRepository()
	router := setupRateLimitedRouter(store, 1)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/links", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/links", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// Истечение TTL ключа окна
	store.Reset()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/links", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

// TestRateLimiter_IdentityFromAPIKey проверяет, что лимит считается по ключу,
// а не по IP, если ключ провалидирован
func TestRateLimiter_IdentityFromAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := mocks.NewMockRateLimitRepository()
	logger := zap.NewNop()

	limiter := middleware.NewRateLimiter(store, middleware.RateLimiterConfig{
		Requests: 1,
		Window:   time.Minute,
	}, logger)

	apiKeys := middleware.OptionalAPIKey(map[string]string{
		"key-one": "alice",
		"key-two": "bob",
	})

	router := gin.New()
	router.POST("/links", apiKeys, limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "created"})
	})

	// Оба ключа приходят с одного IP, но имеют независимые бюджеты
	for _, key := range []string{"key-one", "key-two"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		req.Header.Set("X-API-Key", key)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusCreated, w.Code, "первый запрос ключа %s", key)
	}

	// Второй запрос того же ключа упирается в лимит
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/links", nil)
	req.Header.Set("X-API-Key", "key-one")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
