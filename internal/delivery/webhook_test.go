package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solewatch/releasecore/internal/schema"
)

func TestWebhookTransport_SuccessAndGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := NewWebhookTransport()

	ok := transport.Send(context.Background(), schema.DeliveryTask{
		Channel: schema.Channel{Kind: schema.ChannelDiscord, Address: srv.URL},
		Payload: schema.WebhookPayload{Name: "AJ1"},
	})
	assert.Equal(t, OutcomeSent, ok.Outcome)

	gone := transport.Send(context.Background(), schema.DeliveryTask{
		Channel: schema.Channel{Kind: schema.ChannelDiscord, Address: srv.URL + "/gone"},
		Payload: schema.WebhookPayload{Name: "AJ1"},
	})
	assert.Equal(t, OutcomePermanent, gone.Outcome)
	assert.Equal(t, "webhook_gone", gone.Reason)
}

func TestWebhookTransport_RateLimitedHonorsRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	transport := NewWebhookTransport()
	result := transport.Send(context.Background(), schema.DeliveryTask{
		Channel: schema.Channel{Kind: schema.ChannelSlack, Address: srv.URL},
		Payload: schema.WebhookPayload{Name: "AJ1"},
	})
	assert.Equal(t, OutcomeRetryable, result.Outcome)
	assert.Equal(t, 5e9, float64(result.RetryAfter))
}
