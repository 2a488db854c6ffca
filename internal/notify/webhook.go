package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// WebhookNotifier POSTs notifications to a delivery endpoint (the push
// gateway sits behind it). One attempt per notification.
type WebhookNotifier struct {
	client *resty.Client
	log    zerolog.Logger
}

// NewWebhookNotifier builds a notifier for the given endpoint URL.
func NewWebhookNotifier(url string, log zerolog.Logger) *WebhookNotifier {
	c := resty.New().
		SetBaseURL(url).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(0)
	return &WebhookNotifier{client: c, log: log}
}

type webhookBody struct {
	Category Category `json:"category"`
	Payload  Payload  `json:"payload"`
}

// Notify posts the notification; non-2xx responses are reported as errors
// for the caller to log.
func (n *WebhookNotifier) Notify(ctx context.Context, category Category, payload Payload) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookBody{Category: category, Payload: payload}).
		Post("")
	if err != nil {
		return fmt.Errorf("notify %s: %w", category, err)
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("notify %s: status %d", category, resp.StatusCode())
	}
	return nil
}

// New selects a notifier: webhook when a URL is configured, local log
// otherwise.
func New(webhookURL string, log zerolog.Logger) Notifier {
	if webhookURL != "" {
		return NewWebhookNotifier(webhookURL, log)
	}
	return NewLogNotifier(log)
}
