// Package memstore is an in-process implementation of storage.Gateway,
// used by unit tests and as a dry-run backend. It follows the same
// row-scoped-mutex discipline as internal/canon.MemoryStore, extended to
// cover every operation in spec.md §6.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/ratecounter"
	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/subscription"
)

// Store is an in-memory storage.Gateway. Canonical-release CAS
// operations (Get/Insert/CompareAndSwap) are delegated to an embedded
// canon.MemoryStore so there is exactly one row-locking implementation
// shared by the Canonicalizer's unit tests and this broader gateway.
type Store struct {
	*canon.MemoryStore

	now func() time.Time

	mu          sync.Mutex
	events      []schema.ReleaseEvent
	snapshots   map[string]schema.StockSnapshot // releaseID -> latest
	health      map[string]schema.ScraperHealth
	tasks       map[string]*schema.DeliveryTask
	taskSeq     map[string]int64 // task_id -> creation sequence, for FIFO tie-breaks
	nextSeq     int64
	deadLetters []schema.DeadLetter
	quarantines []schema.QuarantineRecord

	subIndex *subscription.Index
	rates    *ratecounter.Counter
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{
		MemoryStore: canon.NewMemoryStore(),
		now:         time.Now,
		snapshots:   make(map[string]schema.StockSnapshot),
		health:      make(map[string]schema.ScraperHealth),
		tasks:       make(map[string]*schema.DeliveryTask),
		taskSeq:     make(map[string]int64),
		subIndex:    subscription.NewIndex(),
		rates:       ratecounter.New(),
	}
}

// WithClock overrides the clock (for tests).
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// UpsertSubscription installs or replaces a subscription in the matcher
// index this store backs LoadSubscriptionsByBrandOrSKU with. Not part of
// storage.Gateway: subscription CRUD is an external collaborator's
// concern (spec.md §1), this is test/bootstrap plumbing only.
func (s *Store) UpsertSubscription(sub schema.UserSubscription) {
	s.subIndex.Upsert(sub)
}

func (s *Store) AppendEvent(_ context.Context, event schema.ReleaseEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns every event appended so far, in append order. Test and
// introspection helper, not part of storage.Gateway.
func (s *Store) Events() []schema.ReleaseEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.ReleaseEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) AppendStockSnapshot(_ context.Context, snap schema.StockSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, ok := s.snapshots[snap.ReleaseID]
	if ok && prior.Sizes.Equal(snap.Sizes) {
		return false, nil
	}
	s.snapshots[snap.ReleaseID] = snap
	return true, nil
}

func (s *Store) LoadSubscriptionsByBrandOrSKU(_ context.Context, brand, sku string) ([]schema.UserSubscription, error) {
	matches := s.subIndex.Match(schema.CanonicalRelease{Brand: brand, SKU: sku})
	out := make([]schema.UserSubscription, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Subscription)
	}
	return out, nil
}

func (s *Store) UpdateHealth(_ context.Context, health schema.ScraperHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[health.TargetID] = health
	return nil
}

// Health returns the current health row for targetID. Test helper.
func (s *Store) Health(targetID string) (schema.ScraperHealth, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.health[targetID]
	return h, ok
}

func (s *Store) EnqueueTask(_ context.Context, task schema.DeliveryTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := task
	s.tasks[t.TaskID] = &t
	s.nextSeq++
	s.taskSeq[t.TaskID] = s.nextSeq
	return nil
}

// LeaseTask scans PENDING tasks (or tasks whose lease has expired) for
// channelKind, ordered by next_attempt_at ascending with creation order
// as the tie-break, and leases the first one found. This mirrors
// pgstore's "ORDER BY next_attempt_at ASC" lease query so both backends
// preserve the per-user FIFO ordering spec.md §4.9/§5 require. A linear
// scan is adequate for the in-memory/test backend; pgstore uses
// SELECT ... FOR UPDATE SKIP LOCKED for the same contract under load.
func (s *Store) LeaseTask(_ context.Context, channelKind schema.ChannelKind, leaseOwner string, leaseExpiresAt time.Time) (*schema.DeliveryTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.tasks[ids[i]], s.tasks[ids[j]]
		if !a.NextAttemptAt.Equal(b.NextAttemptAt) {
			return a.NextAttemptAt.Before(b.NextAttemptAt)
		}
		return s.taskSeq[ids[i]] < s.taskSeq[ids[j]]
	})

	for _, id := range ids {
		t := s.tasks[id]
		if t.Channel.Kind != channelKind {
			continue
		}
		leaseExpired := !t.LeaseExpiresAt.IsZero() && now.After(t.LeaseExpiresAt)
		available := t.Status == schema.DeliveryPending || (t.Status == schema.DeliveryInFlight && leaseExpired)
		if !available {
			continue
		}
		t.Status = schema.DeliveryInFlight
		t.LeaseOwner = leaseOwner
		t.LeaseExpiresAt = leaseExpiresAt
		t.LastAttemptAt = now
		t.Attempts++
		leased := *t
		return &leased, nil
	}
	return nil, nil
}

func (s *Store) CompleteTask(_ context.Context, taskID string, status schema.DeliveryStatus, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return errs.New("memstore", errs.KindDeliveryPermanent, errs.WithCode(errs.CodeNotFound),
			errs.WithMessage("task not found"), errs.WithField("task_id", taskID))
	}
	t.Status = status
	t.NextAttemptAt = nextAttemptAt
	if status != schema.DeliveryInFlight {
		t.LeaseOwner = ""
		t.LeaseExpiresAt = time.Time{}
	}
	return nil
}

// Task returns a copy of the named task. Test helper.
func (s *Store) Task(taskID string) (schema.DeliveryTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return schema.DeliveryTask{}, false
	}
	return *t, true
}

func (s *Store) DeadLetter(_ context.Context, dl schema.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	s.deadLetters = append(s.deadLetters, dl)
	return nil
}

// DeadLetters returns every dead-letter row written so far. Test helper.
func (s *Store) DeadLetters() []schema.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.DeadLetter, len(s.deadLetters))
	copy(out, s.deadLetters)
	return out
}

func (s *Store) Quarantine(_ context.Context, rec schema.QuarantineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	s.quarantines = append(s.quarantines, rec)
	return nil
}

// Quarantines returns every quarantine row written so far. Test helper.
func (s *Store) Quarantines() []schema.QuarantineRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.QuarantineRecord, len(s.quarantines))
	copy(out, s.quarantines)
	return out
}

func (s *Store) IncrementRate(_ context.Context, userID string, at time.Time) (int64, error) {
	return s.rates.Increment(userID, at), nil
}

func (s *Store) RateCount(_ context.Context, userID string, at time.Time) (int64, error) {
	return s.rates.Count(userID, at), nil
}
