package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nkuznetsov/linkcut/internal/handler"
	"github.com/nkuznetsov/linkcut/internal/middleware"
	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/service"
	"github.com/nkuznetsov/linkcut/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// handlerEnv — окружение для HTTP-тестов поверх моковых хранилищ
type handlerEnv struct {
	router     *gin.Engine
	classifier *mocks.MockClassifier
	dispatcher *mocks.MockClickDispatcher
}

func setupHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	linkRepo := mocks.NewMockLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	reservations := mocks.NewMockReservationRepository()
	classifier := mocks.NewMockClassifier()
	dispatcher := mocks.NewMockClickDispatcher()

	allocator := service.NewCodeAllocator(reservations)
	clicks := service.NewClickService(linkRepo, cacheRepo, logger)
	linkService := service.NewLinkService(
		linkRepo, cacheRepo, allocator, classifier, dispatcher, clicks,
		time.Hour, logger,
	)

	h := handler.NewLinkHandler(linkService, "http://localhost:8080", logger)
	apiKeys := middleware.OptionalAPIKey(map[string]string{"admin-key": "admin"})

	router := gin.New()
	api := router.Group("/api/v1/links", apiKeys)
	{
		api.POST("", h.CreateLink)
		api.GET("/:code", h.GetLink)
		api.PATCH("/:code", h.UpdateLink)
		api.DELETE("/:code", h.DeleteLink)
		api.GET("/:code/stats", h.GetStats)
	}
	router.GET("/:code", h.Redirect)

	return &handlerEnv{router: router, classifier: classifier, dispatcher: dispatcher}
}

func (e *handlerEnv) do(t *testing.T, method, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeLink(t *testing.T, w *httptest.ResponseRecorder) handler.LinkResponse {
	t.Helper()
	var resp handler.LinkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// TestLinkHandler_CreateAndRedirect проверяет полный путь: создание и редирект
func TestLinkHandler_CreateAndRedirect(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://example.com/page"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	created := decodeLink(t, w)
	assert.Len(t, created.ShortCode, 7)
	assert.Equal(t, "http://localhost:8080/"+created.ShortCode, created.ShortURL)

	w = env.do(t, http.MethodGet, "/"+created.ShortCode, nil, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://example.com/page", w.Header().Get("Location"))
	assert.Equal(t, 1, env.dispatcher.DispatchedCount())
}

// TestLinkHandler_Create_InvalidURL проверяет 400 на невалидном URL
func TestLinkHandler_Create_InvalidURL(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "not-a-url"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_url")
}

// TestLinkHandler_Create_MissingURL проверяет 400 без поля url
func TestLinkHandler_Create_MissingURL(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/links", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_request")
}

// TestLinkHandler_Create_CodeCollision проверяет 409 на занятом коде
func TestLinkHandler_Create_CodeCollision(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://example.com/a", "custom_code": "mycode"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://example.com/b", "custom_code": "mycode"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "code_collision")
}

// TestLinkHandler_Create_SafetyBlocked проверяет 422 от политики безопасности
func TestLinkHandler_Create_SafetyBlocked(t *testing.T) {
	env := setupHandlerEnv(t)
	env.classifier.Verdict = &models.SafetyVerdict{
		IsSafe:     false,
		Flagged:    true,
		Reason:     "phishing",
		Category:   models.CategoryMalicious,
		Confidence: 0.95,
	}

	w := env.do(t, http.MethodPost, "/api/v1/links", gin.H{"url": "https://evil.example.com"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "safety_blocked")
}

// TestLinkHandler_Redirect_NotFound проверяет 404 на неизвестном коде
func TestLinkHandler_Redirect_NotFound(t *testing.T) {
	env := setupHandlerEnv(t)

	w := env.do(t, http.MethodGet, "/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_found")
}

// TestLinkHandler_Redirect_FlaggedInterstitial проверяет страницу-прослойку
// для помеченной ссылки и обход через confirmed=1
func TestLinkHandler_Redirect_FlaggedInterstitial(t *testing.T) {
	env := setupHandlerEnv(t)
	env.classifier.Verdict = &models.SafetyVerdict{
		IsSafe:     false,
		Flagged:    true,
		Reason:     "suspicious redirect chain",
		Category:   models.CategorySuspicious,
		Confidence: 0.9,
	}

	w := env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://sketchy.example.com", "custom_code": "warnme"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeLink(t, w)
	require.True(t, created.Flagged)

	// Без подтверждения — HTML-предупреждение вместо редиректа
	w = env.do(t, http.MethodGet, "/warnme", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "suspicious redirect chain")
	assert.Contains(t, w.Body.String(), "/warnme?confirmed=1")

	// С подтверждением — обычный редирект
	w = env.do(t, http.MethodGet, "/warnme?confirmed=1", nil, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "https://sketchy.example.com", w.Header().Get("Location"))
}

// TestLinkHandler_Update_OwnershipFlow проверяет смену кода через PATCH
// с ключом владельца и отказ анонимному вызывающему
func TestLinkHandler_Update_OwnershipFlow(t *testing.T) {
	env := setupHandlerEnv(t)
	adminHeaders := map[string]string{"X-API-Key": "admin-key"}

	w := env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://example.com/owned", "custom_code": "oldcode"}, adminHeaders)
	require.Equal(t, http.StatusCreated, w.Code)

	// Анонимный вызывающий не владеет ссылкой
	w = env.do(t, http.MethodPatch, "/api/v1/links/oldcode",
		gin.H{"custom_code": "newcode"}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Владелец меняет код
	w = env.do(t, http.MethodPatch, "/api/v1/links/oldcode",
		gin.H{"custom_code": "newcode"}, adminHeaders)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeLink(t, w)
	assert.Equal(t, "newcode", updated.ShortCode)

	// Старый код отдал 404, новый редиректит
	w = env.do(t, http.MethodGet, "/oldcode", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/newcode", nil, nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}

// TestLinkHandler_Delete проверяет удаление и последующий 404
func TestLinkHandler_Delete(t *testing.T) {
	env := setupHandlerEnv(t)
	adminHeaders := map[string]string{"X-API-Key": "admin-key"}

	w := env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://example.com/gone", "custom_code": "byebye"}, adminHeaders)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/links/byebye", nil, adminHeaders)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/byebye", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/v1/links/byebye", nil, adminHeaders)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestLinkHandler_Stats проверяет отдачу статистики после кликов
func TestLinkHandler_Stats(t *testing.T) {
	env := setupHandlerEnv(t)
	env.dispatcher.Fail = true // клики считаются синхронно в БД

	w := env.do(t, http.MethodPost, "/api/v1/links",
		gin.H{"url": "https://example.com/tracked", "custom_code": "counted"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	for i := 0; i < 2; i++ {
		w = env.do(t, http.MethodGet, "/counted", nil, nil)
		require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/links/counted/stats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.LinkStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "counted", stats.ShortCode)
	assert.Equal(t, int64(2), stats.Clicks)
}
