package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Classifier ClassifierConfig
	Queue      QueueConfig
	Webhook    WebhookConfig
}

type AppConfig struct {
	Port    string
	BaseURL string // внешний адрес для построения коротких URL
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host string
	Port string
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> имя владельца
}

type RateLimitConfig struct {
	Requests int64         // лимит на окно
	Window   time.Duration // ширина фиксированного окна
}

type CacheConfig struct {
	TTL time.Duration // TTL кэша резолва, не связан со сроком жизни ссылки
}

type ClassifierConfig struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxCallsPerSecond float64 // троттлинг исходящих вызовов
}

type QueueConfig struct {
	PublishURL  string // endpoint публикации провайдера очереди
	CallbackURL string // наш webhook, куда провайдер доставит job
	Timeout     time.Duration
}

type WebhookConfig struct {
	Secret string // общий секрет HMAC подписи тела
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// .env опционален: в контейнере всё приходит из окружения
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	cfg.App.Port = viper.GetString("APP_PORT")
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	cfg.App.BaseURL = viper.GetString("BASE_URL")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}

	cfg.DB.Host = viper.GetString("DB_HOST")
	cfg.DB.Port = viper.GetString("DB_PORT")
	cfg.DB.User = viper.GetString("DB_USER")
	cfg.DB.Password = viper.GetString("DB_PASSWORD")
	cfg.DB.Name = viper.GetString("DB_NAME")
	cfg.Redis.Host = viper.GetString("REDIS_HOST")
	cfg.Redis.Port = viper.GetString("REDIS_PORT")

	// API ключи в формате key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(viper.GetString("API_KEYS"))

	cfg.RateLimit.Requests = viper.GetInt64("RATE_LIMIT_REQUESTS")
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 30
	}
	cfg.RateLimit.Window = time.Duration(viper.GetInt64("RATE_LIMIT_WINDOW_MS")) * time.Millisecond
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}

	cfg.Cache.TTL = time.Duration(viper.GetInt64("CACHE_TTL_SECONDS")) * time.Second
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}

	cfg.Classifier.APIKey = viper.GetString("CLASSIFIER_API_KEY")
	cfg.Classifier.Model = viper.GetString("CLASSIFIER_MODEL")
	if cfg.Classifier.Model == "" {
		cfg.Classifier.Model = "claude-3-5-haiku-latest"
	}
	cfg.Classifier.Timeout = time.Duration(viper.GetInt64("CLASSIFIER_TIMEOUT_MS")) * time.Millisecond
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 5 * time.Second
	}
	cfg.Classifier.MaxCallsPerSecond = viper.GetFloat64("CLASSIFIER_MAX_RPS")
	if cfg.Classifier.MaxCallsPerSecond == 0 {
		cfg.Classifier.MaxCallsPerSecond = 5
	}

	cfg.Queue.PublishURL = viper.GetString("QUEUE_PUBLISH_URL")
	cfg.Queue.CallbackURL = viper.GetString("QUEUE_CALLBACK_URL")
	if cfg.Queue.CallbackURL == "" {
		cfg.Queue.CallbackURL = cfg.App.BaseURL + "/api/v1/webhooks/clicks"
	}
	cfg.Queue.Timeout = time.Duration(viper.GetInt64("QUEUE_TIMEOUT_MS")) * time.Millisecond
	if cfg.Queue.Timeout == 0 {
		cfg.Queue.Timeout = 3 * time.Second
	}

	cfg.Webhook.Secret = viper.GetString("WEBHOOK_SECRET")

	return &cfg, nil
}

// parseAPIKeys разбирает строку вида "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
