package postback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/augmentac/ff2api-postback/pkg/common"
	"github.com/augmentac/ff2api-postback/pkg/config"
	"github.com/augmentac/ff2api-postback/pkg/logger"
)

// WebhookHandler POSTs the batch to an HTTP endpoint in chunks. Every chunk
// must be delivered for the handler to report success.
type WebhookHandler struct {
	url        string
	headers    map[string]string
	batchSize  int
	retryCount int
	retryDelay time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(cfg config.HandlerConfig, log *logger.Logger) *WebhookHandler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	return &WebhookHandler{
		url:        cfg.URL,
		headers:    cfg.Headers,
		batchSize:  batchSize,
		retryCount: retryCount,
		retryDelay: time.Second,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		log: log,
	}
}

// Name returns the handler type tag
func (h *WebhookHandler) Name() string { return "webhook" }

// ValidateConfig checks that a target URL is configured
func (h *WebhookHandler) ValidateConfig() error {
	if h.url == "" {
		return fmt.Errorf("webhook handler requires a url")
	}
	return nil
}

// Post delivers the rows in chunks of the configured batch size
func (h *WebhookHandler) Post(ctx context.Context, rows []common.Row) error {
	if len(rows) == 0 {
		h.log.Info("No rows to deliver, skipping webhook")
		return nil
	}

	for start := 0; start < len(rows); start += h.batchSize {
		end := start + h.batchSize
		if end > len(rows) {
			end = len(rows)
		}

		if err := h.postChunk(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("webhook chunk %d-%d failed: %w", start, end, err)
		}
	}

	return nil
}

func (h *WebhookHandler) postChunk(ctx context.Context, chunk []common.Row) error {
	payload := map[string]interface{}{
		"data":  chunk,
		"count": len(chunk),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < h.retryCount; attempt++ {
		if attempt > 0 {
			h.log.Warnf("Retrying webhook delivery (attempt %d/%d): %v", attempt+1, h.retryCount, lastErr)
			select {
			case <-time.After(h.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = h.send(ctx, body)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (h *WebhookHandler) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
