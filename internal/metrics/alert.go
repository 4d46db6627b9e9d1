package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

// AlertKind names an alert condition. Cooldowns are tracked per kind.
type AlertKind string

const (
	AlertFailedConnections AlertKind = "failed_connections"
	AlertNoData            AlertKind = "no_data"
	AlertHeartbeat         AlertKind = "heartbeat_failures"
)

// Alert is a single raised condition.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Summary   Summary   `json:"metrics"`
}

// Alerter delivers alerts.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// LogAlerter writes alerts to a logger at warn level.
type LogAlerter struct {
	Logger *slog.Logger
}

// Alert implements Alerter.
func (l LogAlerter) Alert(_ context.Context, a Alert) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("ALERT",
		"kind", a.Kind,
		"message", a.Message,
		"failed_connections", a.Summary.FailedConnections,
		"consecutive_heartbeat_failures", a.Summary.ConsecutiveHeartbeatFailures,
	)
	return nil
}

// MultiAlerter fans an alert out to every alerter and joins their errors.
type MultiAlerter []Alerter

// Alert implements Alerter.
func (m MultiAlerter) Alert(ctx context.Context, a Alert) error {
	var errs []error
	for _, al := range m {
		if err := al.Alert(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WebhookError is a non-2xx response from the alert webhook.
type WebhookError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("alert webhook error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry.
func (e *WebhookError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// WebhookAlerter POSTs alerts as JSON to a URL.
type WebhookAlerter struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries   int
	retryBackoff time.Duration
}

// WebhookOption configures a WebhookAlerter.
type WebhookOption func(*WebhookAlerter)

// NewWebhookAlerter creates an alerter for url.
func NewWebhookAlerter(url string, opts ...WebhookOption) *WebhookAlerter {
	w := &WebhookAlerter{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   0,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// WithWebhookTimeout sets the HTTP client timeout.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookAlerter) {
		w.httpClient.Timeout = d
	}
}

// WithWebhookRetries sets the retry configuration.
func WithWebhookRetries(max int, backoff time.Duration) WebhookOption {
	return func(w *WebhookAlerter) {
		w.maxRetries = max
		w.retryBackoff = backoff
	}
}

// WithWebhookLogger sets the logger.
func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *WebhookAlerter) {
		w.logger = logger
	}
}

// Alert implements Alerter.
func (w *WebhookAlerter) Alert(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	var lastErr error
	backoff := w.retryBackoff

	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			// backoff * (0.5 to 1.5)
			jitter := backoff/2 + time.Duration(rand.Int63n(int64(backoff)))
			w.logger.Debug("retrying alert webhook",
				"attempt", attempt,
				"backoff", jitter,
				"kind", a.Kind,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}

			backoff *= 2
		}

		err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err

		var whErr *WebhookError
		if !errors.As(err, &whErr) || !whErr.IsRetryable() {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (w *WebhookAlerter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &WebhookError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}
	return nil
}
