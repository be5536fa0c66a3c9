// Package delivery implements the per-channel Delivery Workers: leasing
// a DeliveryTask, invoking its channel transport, and applying the
// retry/dead-letter policy in spec.md §4.10.
package delivery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/solewatch/releasecore/internal/schema"
)

// Store is the subset of storage.Gateway a Worker writes through.
type Store interface {
	LeaseTask(ctx context.Context, channelKind schema.ChannelKind, leaseOwner string, leaseExpiresAt time.Time) (*schema.DeliveryTask, error)
	CompleteTask(ctx context.Context, taskID string, status schema.DeliveryStatus, nextAttemptAt time.Time) error
	DeadLetter(ctx context.Context, dl schema.DeadLetter) error
	IncrementRate(ctx context.Context, userID string, at time.Time) (int64, error)
}

// Outcome classifies a transport attempt.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeRetryable
	OutcomePermanent
)

// Result is a transport's verdict on one delivery attempt.
type Result struct {
	Outcome    Outcome
	RetryAfter time.Duration // honored when set and Outcome == OutcomeRetryable
	Reason     string        // populated on OutcomePermanent, for the dead-letter row
}

// Transport sends one DeliveryTask's payload over a channel (spec.md
// §4.10): email, discord/slack/custom-webhook, or push.
type Transport interface {
	Send(ctx context.Context, task schema.DeliveryTask) Result
}

const (
	maxAttempts  = 6
	retryBase    = 10 * time.Second
	retryCap     = time.Hour
	leaseWindow  = 2 * time.Minute
)

// Worker leases and drains DeliveryTasks for one channel kind.
type Worker struct {
	channelKind schema.ChannelKind
	store       Store
	transport   Transport
	leaseOwner  string
	now         func() time.Time
}

// NewWorker builds a Worker for channelKind, identified by leaseOwner in
// the lease-exclusivity discipline (spec.md §8 invariant 3).
func NewWorker(channelKind schema.ChannelKind, store Store, transport Transport) *Worker {
	return &Worker{
		channelKind: channelKind,
		store:       store,
		transport:   transport,
		leaseOwner:  uuid.NewString(),
		now:         time.Now,
	}
}

// WithClock overrides the clock (for tests).
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// LeaseAndAttempt leases the next available task for this worker's
// channel and drives it through exactly one transport attempt, applying
// the retry/dead-letter policy. Returns (false, nil) when no task was
// available to lease.
func (w *Worker) LeaseAndAttempt(ctx context.Context) (attempted bool, err error) {
	now := w.now().UTC()
	task, leaseErr := w.store.LeaseTask(ctx, w.channelKind, w.leaseOwner, now.Add(leaseWindow))
	if leaseErr != nil {
		return false, leaseErr
	}
	if task == nil {
		return false, nil
	}

	result := w.transport.Send(ctx, *task)

	switch result.Outcome {
	case OutcomeSent:
		if completeErr := w.store.CompleteTask(ctx, task.TaskID, schema.DeliverySent, time.Time{}); completeErr != nil {
			return true, completeErr
		}
		_, rateErr := w.store.IncrementRate(ctx, task.UserID, now)
		return true, rateErr

	case OutcomePermanent:
		return true, w.deadLetter(ctx, *task, result.Reason)

	default: // OutcomeRetryable
		if task.Attempts >= maxAttempts {
			return true, w.deadLetter(ctx, *task, "max_attempts_exceeded")
		}
		delay := backoffDelay(task.Attempts)
		if result.RetryAfter > delay {
			delay = result.RetryAfter
		}
		return true, w.store.CompleteTask(ctx, task.TaskID, schema.DeliveryPending, now.Add(delay))
	}
}

func (w *Worker) deadLetter(ctx context.Context, task schema.DeliveryTask, reason string) error {
	if err := w.store.CompleteTask(ctx, task.TaskID, schema.DeliveryDeadLettered, time.Time{}); err != nil {
		return err
	}
	return w.store.DeadLetter(ctx, schema.DeadLetter{
		OriginalEventID: task.EventID,
		UserID:          task.UserID,
		Payload:         task.Payload,
		Reason:          reason,
		CreatedAt:       w.now().UTC(),
	})
}

// backoffDelay computes the exponential backoff for attempt N, base 10s
// cap 1h, using cenkalti/backoff/v5's calculator as a pure function (the
// same reuse pattern internal/canon applies to its contention retries).
func backoffDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBase
	b.MaxInterval = retryCap
	b.Multiplier = 2
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	if d > retryCap {
		d = retryCap
	}
	return d
}

// Run drains this worker's channel in a loop until ctx is cancelled,
// sleeping pollInterval between empty leases.
func (w *Worker) Run(ctx context.Context, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				attempted, err := w.LeaseAndAttempt(ctx)
				if err != nil || !attempted {
					break
				}
			}
		}
	}
}
