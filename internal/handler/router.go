package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/nkuznetsov/linkcut/internal/middleware"
	"go.uber.org/zap"
)

// RouterDeps — зависимости роутера
type RouterDeps struct {
	LinkHandler      *LinkHandler
	WebhookHandler   *WebhookHandler
	RateLimiter      *middleware.RateLimiter
	APIKeyMiddleware gin.HandlerFunc // опциональный ключ: анонимам можно создавать
	Logger           *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		deps.Logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		// Callback провайдера очереди: авторизация — подпись тела, не API ключ
		v1.POST("/webhooks/clicks", deps.WebhookHandler.HandleClick)

		links := v1.Group("/links")
		if deps.APIKeyMiddleware != nil {
			links.Use(deps.APIKeyMiddleware)
		}
		{
			// Rate limit стоит только на создании
			links.POST("", deps.RateLimiter.Middleware(), deps.LinkHandler.CreateLink)
			links.GET("/:code", deps.LinkHandler.GetLink)
			links.PATCH("/:code", deps.LinkHandler.UpdateLink)
			links.DELETE("/:code", deps.LinkHandler.DeleteLink)
			links.GET("/:code/stats", deps.LinkHandler.GetStats)
		}
	}

	// Редирект (корневой путь) — без аутентификации
	router.GET("/:code", deps.LinkHandler.Redirect)

	AddDocsRoutes(router)

	return router
}
