// Package healthtracker maintains per-target success/failure counters
// and the circuit-breaker state machine the Scheduler consults on every
// dispatch decision (spec.md §4.6).
package healthtracker

import (
	"context"
	"sync"
	"time"

	"github.com/solewatch/releasecore/internal/schema"
)

// Store persists ScraperHealth rows. A coalescing Tracker batches writes
// through this interface on a fixed interval rather than on every
// outcome, bounding write volume (spec.md §4.6).
type Store interface {
	UpdateHealth(ctx context.Context, health schema.ScraperHealth) error
}

// Outcome classifies one fetch result for the purposes of the breaker
// state machine. Ok resets consecutive failures; any other outcome
// increments them.
type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomeFailure
)

// Tracker owns every target's ScraperHealth row in memory and flushes
// changes to Store on a coalescing interval.
type Tracker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu     sync.Mutex
	health map[string]*schema.ScraperHealth
	dirty  map[string]struct{}

	// halfOpenProbing tracks targets with an in-flight HALF_OPEN probe so
	// the Scheduler admits at most one at a time (spec.md §4.5).
	halfOpenProbing map[string]struct{}
}

// New builds a Tracker with the given breaker threshold and cooldown
// (spec.md §6 config: scraper_cb_threshold, scraper_cb_cooldown_ms).
func New(threshold int, cooldown time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &Tracker{
		threshold:       threshold,
		cooldown:        cooldown,
		now:             time.Now,
		health:          make(map[string]*schema.ScraperHealth),
		dirty:           make(map[string]struct{}),
		halfOpenProbing: make(map[string]struct{}),
	}
}

// WithClock overrides the clock (for tests).
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

func (t *Tracker) rowFor(targetID string) *schema.ScraperHealth {
	h, ok := t.health[targetID]
	if !ok {
		h = &schema.ScraperHealth{TargetID: targetID, BreakerState: schema.BreakerClosed}
		t.health[targetID] = h
	}
	return h
}

// Record applies a fetch outcome to targetID's health row, running the
// breaker state machine described in spec.md §4.6.
func (t *Tracker) Record(targetID string, outcome Outcome) schema.ScraperHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	h := t.rowFor(targetID)

	switch outcome {
	case OutcomeOk:
		h.ConsecutiveFailures = 0
		h.LastSuccessAt = now
		if h.BreakerState == schema.BreakerHalfOpen || h.BreakerState == schema.BreakerOpen {
			h.BreakerState = schema.BreakerClosed
		}
		delete(t.halfOpenProbing, targetID)
	default:
		h.ConsecutiveFailures++
		if h.BreakerState == schema.BreakerHalfOpen {
			h.BreakerState = schema.BreakerOpen
			h.BreakerOpenedAt = now
			delete(t.halfOpenProbing, targetID)
		} else if h.BreakerState == schema.BreakerClosed && h.ConsecutiveFailures >= t.threshold {
			h.BreakerState = schema.BreakerOpen
			h.BreakerOpenedAt = now
		}
	}

	t.dirty[targetID] = struct{}{}
	return *h
}

// Admit reports whether targetID may be dispatched right now, and
// whether this dispatch would be the single admitted HALF_OPEN probe.
// Called by the Scheduler on every dispatch decision (spec.md §4.5).
func (t *Tracker) Admit(targetID string) (admit bool, isProbe bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	h := t.rowFor(targetID)

	switch h.BreakerState {
	case schema.BreakerClosed:
		return true, false
	case schema.BreakerOpen:
		if now.Sub(h.BreakerOpenedAt) >= t.cooldown {
			h.BreakerState = schema.BreakerHalfOpen
			t.dirty[targetID] = struct{}{}
		} else {
			return false, false
		}
		fallthrough
	case schema.BreakerHalfOpen:
		if _, probing := t.halfOpenProbing[targetID]; probing {
			return false, false
		}
		t.halfOpenProbing[targetID] = struct{}{}
		return true, true
	default:
		return true, false
	}
}

// Snapshot returns a copy of targetID's current health row.
func (t *Tracker) Snapshot(targetID string) schema.ScraperHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.rowFor(targetID)
}

// Flush writes every dirty health row to store and clears the dirty set.
// Intended to be called from a time.Ticker loop at the coalescing
// interval (5s per spec.md §4.6).
func (t *Tracker) Flush(ctx context.Context, store Store) error {
	t.mu.Lock()
	pending := make([]schema.ScraperHealth, 0, len(t.dirty))
	for id := range t.dirty {
		pending = append(pending, *t.health[id])
	}
	t.dirty = make(map[string]struct{})
	t.mu.Unlock()

	for _, h := range pending {
		if err := store.UpdateHealth(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// Run starts the coalescing flusher loop, writing dirty rows to store
// every interval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context, store Store, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = t.Flush(context.Background(), store)
			return
		case <-ticker.C:
			_ = t.Flush(ctx, store)
		}
	}
}
