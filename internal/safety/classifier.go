package safety

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/nkuznetsov/linkcut/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Classifier — внешний классификатор контента. Реализация обязана fail-open:
// недоступность классификатора никогда не блокирует создание ссылки,
// поэтому Check не возвращает ошибку.
type Classifier interface {
	Check(ctx context.Context, url string) *models.SafetyVerdict
}

// systemPrompt фиксирует контракт вердикта: строгий JSON без пояснений.
const systemPrompt = `You are a URL safety classifier for a link shortening service.
Given a URL, respond with ONLY a JSON object, no prose, no code fences:
{"is_safe": bool, "flagged": bool, "reason": string, "category": "safe"|"suspicious"|"malicious"|"inappropriate"|"unknown", "confidence": number between 0 and 1}
Flag phishing, malware distribution, credential harvesting and adult content.
If you cannot judge the URL, use category "unknown" with confidence 0.`

type anthropicClassifier struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	limiter *rate.Limiter // троттлинг исходящих вызовов; пустой bucket = fail open
	logger  *zap.Logger
}

type Options struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxCallsPerSecond float64
}

func NewAnthropicClassifier(opts Options, logger *zap.Logger) Classifier {
	burst := int(opts.MaxCallsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &anthropicClassifier{
		client:  anthropic.NewClient(option.WithAPIKey(opts.APIKey)),
		model:   anthropic.Model(opts.Model),
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Limit(opts.MaxCallsPerSecond), burst),
		logger:  logger,
	}
}

func (c *anthropicClassifier) Check(ctx context.Context, url string) *models.SafetyVerdict {
	if !c.limiter.Allow() {
		c.logger.Warn("Classifier call budget exhausted, failing open")
		return failOpenVerdict()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(url)),
		},
	})
	if err != nil {
		c.logger.Warn("Classifier call failed, failing open", zap.Error(err))
		return failOpenVerdict()
	}

	var text strings.Builder
	for _, block := range message.Content {
		text.WriteString(block.Text)
	}

	verdict, err := parseVerdict(text.String())
	if err != nil {
		c.logger.Warn("Classifier returned malformed verdict, failing open",
			zap.Error(err),
		)
		return failOpenVerdict()
	}

	return verdict
}

// parseVerdict разбирает JSON вердикта и нормализует его поля.
func parseVerdict(raw string) (*models.SafetyVerdict, error) {
	raw = strings.TrimSpace(raw)
	// На случай, если модель всё же обернула ответ в code fence
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var verdict models.SafetyVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, err
	}

	switch verdict.Category {
	case models.CategorySafe, models.CategorySuspicious, models.CategoryMalicious, models.CategoryInappropriate:
	default:
		verdict.Category = models.CategoryUnknown
	}

	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 1 {
		verdict.Confidence = 1
	}

	return &verdict, nil
}

func failOpenVerdict() *models.SafetyVerdict {
	return &models.SafetyVerdict{
		IsSafe:     true,
		Flagged:    false,
		Category:   models.CategoryUnknown,
		Confidence: 0,
	}
}

// disabledClassifier используется, когда ключ классификатора не задан.
type disabledClassifier struct{}

func NewDisabledClassifier() Classifier {
	return disabledClassifier{}
}

func (disabledClassifier) Check(ctx context.Context, url string) *models.SafetyVerdict {
	return failOpenVerdict()
}
