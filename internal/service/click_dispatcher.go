package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/webhook"
)

// ClickDispatcher отправляет ClickJob в очередь провайдера.
// Ошибка возвращается вызывающему явно: решение о синхронном fallback
// принимает вызывающий, а не диспетчер.
type ClickDispatcher interface {
	Dispatch(ctx context.Context, job *models.ClickJob) error
}

// queueDispatcher публикует job по HTTP. Провайдер доставляет тело на
// callback URL как подписанный POST, пробрасывая заголовок подписи.
type queueDispatcher struct {
	httpClient  *http.Client
	publishURL  string
	callbackURL string
	signer      *webhook.Signer
}

func NewQueueDispatcher(publishURL, callbackURL string, timeout time.Duration, signer *webhook.Signer) ClickDispatcher {
	return &queueDispatcher{
		httpClient:  &http.Client{Timeout: timeout},
		publishURL:  publishURL,
		callbackURL: callbackURL,
		signer:      signer,
	}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, job *models.ClickJob) error {
	if d.publishURL == "" {
		return fmt.Errorf("queue publish URL is not configured")
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal click job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.publishURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create publish request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Callback-Url", d.callbackURL)
	req.Header.Set(webhook.SignatureHeader, d.signer.Sign(body))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish click job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("queue provider returned status %d", resp.StatusCode)
	}

	return nil
}
