package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nkuznetsov/linkcut/internal/config"
	"github.com/nkuznetsov/linkcut/internal/handler"
	"github.com/nkuznetsov/linkcut/internal/middleware"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"github.com/nkuznetsov/linkcut/internal/safety"
	"github.com/nkuznetsov/linkcut/internal/service"
	"github.com/nkuznetsov/linkcut/internal/webhook"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.InitSchema(ctx); err != nil {
		cancel()
		logger.Fatal("Failed to init schema", zap.Error(err))
	}
	cancel()

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)
	reservationRepo := repository.NewReservationRepository(redis)
	rateLimitRepo := repository.NewRateLimitRepository(redis)

	// Классификатор контента: без ключа работает в fail-open режиме
	var classifier safety.Classifier
	if cfg.Classifier.APIKey != "" {
		classifier = safety.NewAnthropicClassifier(safety.Options{
			APIKey:            cfg.Classifier.APIKey,
			Model:             cfg.Classifier.Model,
			Timeout:           cfg.Classifier.Timeout,
			MaxCallsPerSecond: cfg.Classifier.MaxCallsPerSecond,
		}, logger)
		logger.Info("Content classifier enabled", zap.String("model", cfg.Classifier.Model))
	} else {
		classifier = safety.NewDisabledClassifier()
		logger.Warn("Content classifier disabled: no API key configured")
	}

	// Конвейер учёта кликов
	signer := webhook.NewSigner(cfg.Webhook.Secret)
	dispatcher := service.NewQueueDispatcher(cfg.Queue.PublishURL, cfg.Queue.CallbackURL, cfg.Queue.Timeout, signer)
	clickService := service.NewClickService(linkRepo, cacheRepo, logger)

	// Сервис ссылок
	allocator := service.NewCodeAllocator(reservationRepo)
	linkService := service.NewLinkService(
		linkRepo, cacheRepo, allocator, classifier, dispatcher, clickService,
		cfg.Cache.TTL, logger,
	)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(rateLimitRepo, middleware.RateLimiterConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}, logger)

	var apiKeyMiddleware gin.HandlerFunc
	if len(cfg.Auth.APIKeys) > 0 {
		apiKeyMiddleware = middleware.OptionalAPIKey(cfg.Auth.APIKeys)
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	// Настройка роутера
	router := handler.NewRouter(handler.RouterDeps{
		LinkHandler:      handler.NewLinkHandler(linkService, cfg.App.BaseURL, logger),
		WebhookHandler:   handler.NewWebhookHandler(signer, clickService, logger),
		RateLimiter:      rateLimiter,
		APIKeyMiddleware: apiKeyMiddleware,
		Logger:           logger,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
