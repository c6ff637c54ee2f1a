// Package notify delivers outbound chat messages. LogProvider writes them to
// the structured log; WebhookProvider posts them to a chat gateway.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/facility-booking/internal/application"
	"github.com/example/facility-booking/internal/logging"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	URL      string
	Token    string
	Timeout  time.Duration
}

// New builds the provider named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (application.Messenger, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "log":
		return NewLogProvider(logger), nil
	case "webhook":
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("notify: webhook provider requires a url")
		}
		return NewWebhookProvider(cfg.URL, cfg.Token, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("notify: unknown provider %q", cfg.Provider)
	}
}

// LogProvider records messages in the log instead of delivering them.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider returns a provider writing to logger.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger}
}

// Send logs msg. It never fails.
func (p *LogProvider) Send(ctx context.Context, userID string, msg application.Message) error {
	logging.FromContextOr(ctx, p.logger).InfoContext(ctx, "outbound message",
		"user_id", userID,
		"text", msg.Text,
		"options", len(msg.Options),
	)
	return nil
}

type webhookOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type webhookPayload struct {
	UserID  string          `json:"user_id"`
	Text    string          `json:"text"`
	Options []webhookOption `json:"options,omitempty"`
}

// WebhookProvider posts each message as JSON to a gateway URL.
type WebhookProvider struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookProvider builds a provider whose requests carry trace context.
// A zero timeout defaults to five seconds.
func NewWebhookProvider(url, token string, timeout time.Duration) *WebhookProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookProvider{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send posts msg for userID. Non-2xx responses are errors.
func (p *WebhookProvider) Send(ctx context.Context, userID string, msg application.Message) error {
	payload := webhookPayload{UserID: userID, Text: msg.Text}
	for _, option := range msg.Options {
		payload.Options = append(payload.Options, webhookOption{Label: option.Label, Value: option.Value})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver to %s: %w", userID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: gateway rejected message for %s: status %d", userID, resp.StatusCode)
	}
	return nil
}
