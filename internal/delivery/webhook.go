package delivery

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/solewatch/releasecore/internal/schema"
)

// WebhookTransport POSTs a JSON payload to discord/slack/custom-webhook
// channels (spec.md §4.10), honoring Retry-After on 429 and retrying on
// 5xx/429.
type WebhookTransport struct {
	HTTP *http.Client
}

// NewWebhookTransport builds a transport with a bounded per-request
// timeout.
func NewWebhookTransport() *WebhookTransport {
	return &WebhookTransport{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (t *WebhookTransport) Send(ctx context.Context, task schema.DeliveryTask) Result {
	body, err := json.Marshal(task.Payload)
	if err != nil {
		return Result{Outcome: OutcomePermanent, Reason: "marshal_error"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Channel.Address, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomePermanent, Reason: "invalid_address"}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return Result{Outcome: OutcomeRetryable}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Outcome: OutcomeSent}
	case resp.StatusCode == http.StatusGone:
		return Result{Outcome: OutcomePermanent, Reason: "webhook_gone"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{Outcome: OutcomeRetryable, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return Result{Outcome: OutcomeRetryable, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 400:
		return Result{Outcome: OutcomePermanent, Reason: "webhook_rejected"}
	default:
		return Result{Outcome: OutcomeRetryable}
	}
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}
