package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/repository"
	"github.com/nkuznetsov/linkcut/internal/service"
	"github.com/nkuznetsov/linkcut/internal/webhook"
	"go.uber.org/zap"
)

// WebhookHandler принимает подписанные callback-и провайдера очереди.
// Доставка at-least-once и без ключа идемпотентности: повторная доставка
// посчитает клик ещё раз — принятый компромисс точности ради доступности.
type WebhookHandler struct {
	signer *webhook.Signer
	clicks service.ClickService
	logger *zap.Logger
}

func NewWebhookHandler(signer *webhook.Signer, clicks service.ClickService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		signer: signer,
		clicks: clicks,
		logger: logger,
	}
}

// HandleClick godoc
// @Summary Click accounting callback
// @Description Signed POST from the queue provider; 200 even for unknown/expired codes so the provider does not retry them
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/webhooks/clicks [post]
func (h *WebhookHandler) HandleClick(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: "Failed to read request body",
		})
		return
	}

	// Подпись проверяется по сырому телу до любого парсинга
	if !h.signer.Verify(body, c.GetHeader(webhook.SignatureHeader)) {
		h.logger.Warn("Webhook с невалидной подписью", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_signature",
			Message: "Signature verification failed",
		})
		return
	}

	var job models.ClickJob
	if err := json.Unmarshal(body, &job); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_body",
			Message: "Malformed click job",
		})
		return
	}

	if job.Action != models.ClickActionIncrement {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_action",
			Message: "Unsupported action: " + job.Action,
		})
		return
	}

	if err := h.clicks.Increment(c.Request.Context(), job.ShortCode); err != nil {
		// Несуществующий или истёкший код — успех без повтора от провайдера
		if errors.Is(err, repository.ErrLinkNotFound) || errors.Is(err, repository.ErrLinkExpired) {
			c.JSON(http.StatusOK, gin.H{"status": "skipped"})
			return
		}
		// Транзакционный сбой — 5xx, чтобы провайдер повторил доставку
		h.logger.Error("Не удалось обработать клик",
			zap.String("short_code", job.ShortCode),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to record click",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
