// Package notify delivers operational alerts to an external webhook.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Alert kinds pushed by the reminder scheduler.
const (
	AlertMissingEntry = "missing_entry"
	AlertLowFeed      = "low_feed"
)

// Alert is the JSON payload posted to the configured webhook.
type Alert struct {
	Kind        string    `json:"kind"`
	CompanyID   int       `json:"company_id"`
	CycleID     int       `json:"cycle_id"`
	CycleNumber int       `json:"cycle_number"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sent_at"`
}

// Notifier delivers alerts. Implementations must be safe for concurrent use.
type Notifier interface {
	SendAlert(ctx context.Context, alert Alert) error
}

// WebhookClient is a resty-backed Notifier that POSTs each alert as JSON to a
// single configured URL.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookClient builds a webhook notifier for the given URL.
func NewWebhookClient(url string) *WebhookClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &WebhookClient{
		httpClient: restyClient,
		url:        url,
	}
}

func (c *WebhookClient) SendAlert(ctx context.Context, alert Alert) error {
	if alert.SentAt.IsZero() {
		alert.SentAt = time.Now()
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post alert webhook: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}
	return nil
}

// Nop discards alerts. It stands in when no webhook URL is configured.
type Nop struct{}

func (Nop) SendAlert(context.Context, Alert) error { return nil }
