// Package fanout turns matched subscriptions into per-user DeliveryTasks,
// enforcing the rate limit check before handing tasks to the durable
// storage gateway, which Delivery Workers lease in per-user FIFO order
// (spec.md §4.9).
package fanout

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/subscription"
)

// Store is the subset of storage.Gateway the Fanout Queue writes
// through.
type Store interface {
	EnqueueTask(ctx context.Context, task schema.DeliveryTask) error
	DeadLetter(ctx context.Context, dl schema.DeadLetter) error
	RateCount(ctx context.Context, userID string, at time.Time) (int64, error)
}

// Queue fans a ReleaseEvent out to every matched subscription, applying
// the rate-limit gate before creating tasks. Per-user FIFO ordering is
// the storage gateway's responsibility (EnqueueTask records creation
// order, LeaseTask drains it) rather than an in-process queue: delivery
// workers lease tasks from the store independently of the scheduler
// that calls Enqueue, so only a durable hand-off, not an in-memory
// channel, can preserve ordering across a restart.
type Queue struct {
	store Store
	now   func() time.Time
}

// New builds a Queue writing through store.
func New(store Store) *Queue {
	return &Queue{
		store: store,
		now:   time.Now,
	}
}

// WithClock overrides the clock (for tests).
func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

// Enqueue applies spec.md §4.9 to one matched subscription: a rate-limit
// check against the subscription's max_events_per_hour, then one
// DeliveryTask per configured channel, persisted via Store.EnqueueTask in
// creation order.
func (q *Queue) Enqueue(ctx context.Context, event schema.ReleaseEvent, release schema.CanonicalRelease, match subscription.Match) error {
	now := q.now().UTC()

	if match.Subscription.MaxEventsPerHour != nil {
		count, err := q.store.RateCount(ctx, match.UserID, now)
		if err != nil {
			return err
		}
		if count >= int64(*match.Subscription.MaxEventsPerHour) {
			return q.store.DeadLetter(ctx, schema.DeadLetter{
				OriginalEventID: event.EventID,
				UserID:          match.UserID,
				Payload:         buildPayload(event, release),
				Reason:          "rate_limited",
				CreatedAt:       now,
			})
		}
	}

	for _, channel := range match.Subscription.Channels {
		task := schema.DeliveryTask{
			TaskID:         uuid.New().String(),
			UserID:         match.UserID,
			SubscriptionID: match.SubscriptionID,
			EventID:        event.EventID,
			Channel:        channel,
			Status:         schema.DeliveryPending,
			NextAttemptAt:  now,
			Payload:        buildPayload(event, release),
		}
		if err := q.store.EnqueueTask(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func buildPayload(event schema.ReleaseEvent, release schema.CanonicalRelease) schema.WebhookPayload {
	payload := schema.WebhookPayload{
		EventID:       event.EventID,
		ReleaseID:     event.ReleaseID,
		Name:          release.Name,
		Brand:         release.Brand,
		URL:           "",
		Region:        release.Region,
		PriorityScore: event.PriorityScore,
		DetectedAt:    event.DetectedAt.Unix(),
	}
	if event.StatusFrom != nil {
		payload.StatusFrom = string(*event.StatusFrom)
	}
	if event.StatusTo != nil {
		payload.StatusTo = string(*event.StatusTo)
	}
	if event.PriceFrom != nil {
		v := event.PriceFrom.String()
		payload.PriceFrom = &v
	}
	if event.PriceTo != nil {
		v := event.PriceTo.String()
		payload.PriceTo = &v
	}
	return payload
}

// MarshalPayload serializes a WebhookPayload with goccy/go-json, matching
// every other wire boundary in this module (spec.md §6).
func MarshalPayload(p schema.WebhookPayload) ([]byte, error) {
	return json.Marshal(p)
}
