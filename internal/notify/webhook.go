// Package notify delivers a webhook POST when a measurement or
// attachment upload finishes, so downstream systems (indexing,
// transcoding, user notification) can react without polling storage.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethgrid/pester"

	"github.com/sensortrace/collector-upload/internal/upload"
)

// CompletionEvent is the JSON body posted to the configured endpoint.
type CompletionEvent struct {
	User       string            `json:"user"`
	Identifier upload.Identifier `json:"identifier"`
	ByteSize   int64             `json:"byteSize"`
	FinishedAt time.Time         `json:"finishedAt"`
}

// Webhook posts a CompletionEvent to Endpoint for every finished upload,
// retrying transient failures with the same fixed delay between attempts.
type Webhook struct {
	Endpoint   string
	MaxRetries int
	Backoff    time.Duration
	Timeout    time.Duration
	Logger     *slog.Logger

	client *pester.Client
}

// NewWebhook builds a Webhook ready to call Notify.
func NewWebhook(endpoint string, maxRetries int, backoff, timeout time.Duration) *Webhook {
	client := pester.New()
	client.KeepLog = true
	client.MaxRetries = maxRetries
	client.Backoff = func(_ int) time.Duration { return backoff }

	return &Webhook{
		Endpoint:   endpoint,
		MaxRetries: maxRetries,
		Backoff:    backoff,
		Timeout:    timeout,
		Logger:     slog.Default(),
		client:     client,
	}
}

// NotifyUploadFinished implements upload.Notifier by posting a
// CompletionEvent. Delivery failures are logged, not propagated: the
// engine calls this fire-and-forget in its own goroutine and does not
// wait for it before writing the response.
func (w *Webhook) NotifyUploadFinished(ctx context.Context, user string, id upload.Identifier, byteSize int64) {
	err := w.Notify(ctx, CompletionEvent{
		User:       user,
		Identifier: id,
		ByteSize:   byteSize,
		FinishedAt: time.Now(),
	})
	if err != nil {
		w.Logger.Error("webhook delivery failed", "identifier", id, "error", err)
	}
}

// Notify posts evt to the webhook endpoint. Errors are returned for the
// caller to log; a failed notification never rolls back the upload.
func (w *Webhook) Notify(ctx context.Context, evt CompletionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encoding event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notify: webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}
