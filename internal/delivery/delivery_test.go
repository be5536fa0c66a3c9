package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/storage/memstore"
)

type fakeTransport struct {
	results []Result
	calls   int
}

func (f *fakeTransport) Send(_ context.Context, _ schema.DeliveryTask) Result {
	r := f.results[f.calls]
	f.calls++
	return r
}

func seedTask(t *testing.T, store *memstore.Store, kind schema.ChannelKind) {
	t.Helper()
	require.NoError(t, store.EnqueueTask(context.Background(), schema.DeliveryTask{
		TaskID:  "t1",
		UserID:  "u1",
		EventID: "e1",
		Channel: schema.Channel{Kind: kind, Address: "addr"},
		Status:  schema.DeliveryPending,
	}))
}

func TestWorker_LeaseAndAttempt_Sent(t *testing.T) {
	store := memstore.New()
	seedTask(t, store, schema.ChannelEmail)
	transport := &fakeTransport{results: []Result{{Outcome: OutcomeSent}}}
	w := NewWorker(schema.ChannelEmail, store, transport)

	attempted, err := w.LeaseAndAttempt(context.Background())
	require.NoError(t, err)
	assert.True(t, attempted)

	task, ok := store.Task("t1")
	require.True(t, ok)
	assert.Equal(t, schema.DeliverySent, task.Status)
}

func TestWorker_LeaseAndAttempt_PermanentDeadLetters(t *testing.T) {
	store := memstore.New()
	seedTask(t, store, schema.ChannelDiscord)
	transport := &fakeTransport{results: []Result{{Outcome: OutcomePermanent, Reason: "webhook_gone"}}}
	w := NewWorker(schema.ChannelDiscord, store, transport)

	attempted, err := w.LeaseAndAttempt(context.Background())
	require.NoError(t, err)
	assert.True(t, attempted)

	dls := store.DeadLetters()
	require.Len(t, dls, 1)
	assert.Equal(t, "webhook_gone", dls[0].Reason)
}

func TestWorker_LeaseAndAttempt_RetryableReschedules(t *testing.T) {
	store := memstore.New()
	seedTask(t, store, schema.ChannelEmail)
	transport := &fakeTransport{results: []Result{{Outcome: OutcomeRetryable}}}
	now := time.Unix(1000, 0)
	w := NewWorker(schema.ChannelEmail, store, transport).WithClock(func() time.Time { return now })

	attempted, err := w.LeaseAndAttempt(context.Background())
	require.NoError(t, err)
	assert.True(t, attempted)

	task, ok := store.Task("t1")
	require.True(t, ok)
	assert.Equal(t, schema.DeliveryPending, task.Status)
	assert.True(t, task.NextAttemptAt.After(now))
}

func TestWorker_LeaseAndAttempt_NoTaskAvailable(t *testing.T) {
	store := memstore.New()
	transport := &fakeTransport{}
	w := NewWorker(schema.ChannelEmail, store, transport)

	attempted, err := w.LeaseAndAttempt(context.Background())
	require.NoError(t, err)
	assert.False(t, attempted)
}

func TestBackoffDelay_GrowsAndCaps(t *testing.T) {
	d0 := backoffDelay(0)
	d5 := backoffDelay(5)
	assert.True(t, d5 >= d0)
	assert.True(t, d5 <= retryCap)
}

func TestEmailTransport_LoggingMailerSends(t *testing.T) {
	mailer := &LoggingMailer{}
	transport := &EmailTransport{Mailer: mailer}
	task := schema.DeliveryTask{
		Channel: schema.Channel{Kind: schema.ChannelEmail, Address: "user@example.com"},
		Payload: schema.WebhookPayload{Name: "AJ1 Bred", Brand: "jordan", StatusTo: "in_stock"},
	}

	result := transport.Send(context.Background(), task)
	assert.Equal(t, OutcomeSent, result.Outcome)
	require.Len(t, mailer.Sent, 1)
	assert.Equal(t, "user@example.com", mailer.Sent[0].To)
	assert.Contains(t, mailer.Sent[0].Subject, "AJ1 Bred")
}

func TestPushTransport_NoSessionIsPermanent(t *testing.T) {
	hub := NewPushHub()
	transport := &PushTransport{Hub: hub}
	task := schema.DeliveryTask{UserID: "u1", Payload: schema.WebhookPayload{Name: "AJ1"}}

	result := transport.Send(context.Background(), task)
	assert.Equal(t, OutcomePermanent, result.Outcome)
	assert.Equal(t, "no_connected_session", result.Reason)
}
