package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/seismoalert/internal/logger"
	"github.com/rewired-gh/seismoalert/internal/models"
)

// Notifier delivers triggered alerts somewhere.
type Notifier interface {
	Notify(ctx context.Context, alerts []models.Alert) error
	Name() string
}

// LogNotifier writes each alert to the application log.
type LogNotifier struct{}

// Name implements Notifier.
func (LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, alerts []models.Alert) error {
	for _, a := range alerts {
		logger.Warn("Alert [%s/%s]: %s", a.RuleName, a.Severity, a.Message)
	}
	return nil
}

// WebhookNotifier POSTs alerts as JSON to a URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// WebhookPayload is the JSON body sent by WebhookNotifier.
type WebhookPayload struct {
	Source string         `json:"source"`
	SentAt time.Time      `json:"sent_at"`
	Alerts []models.Alert `json:"alerts"`
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name implements Notifier.
func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	body, err := json.Marshal(WebhookPayload{
		Source: "seismoalert",
		SentAt: time.Now().UTC(),
		Alerts: alerts,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliveryError is returned by MultiNotifier when at least one channel
// failed. Delivered names the channels that succeeded.
type DeliveryError struct {
	Delivered []string
	Err       error
}

func (e *DeliveryError) Error() string { return e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Partial reports whether some channel still delivered the alerts.
func (e *DeliveryError) Partial() bool { return len(e.Delivered) > 0 }

// MultiNotifier fans alerts out to several notifiers. Every notifier is tried;
// failures are joined into a *DeliveryError.
type MultiNotifier []Notifier

// Name implements Notifier.
func (m MultiNotifier) Name() string { return "multi" }

// Notify implements Notifier.
func (m MultiNotifier) Notify(ctx context.Context, alerts []models.Alert) error {
	var errs []error
	var delivered []string
	for _, n := range m {
		if err := n.Notify(ctx, alerts); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delivered = append(delivered, n.Name())
	}
	if len(errs) == 0 {
		return nil
	}
	return &DeliveryError{Delivered: delivered, Err: errors.Join(errs...)}
}
