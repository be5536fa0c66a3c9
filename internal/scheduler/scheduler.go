// Package scheduler owns the priority-ordered ready queues that decide,
// once per tick, which targets are due for a fetch/parse/canonicalize
// pass (spec.md §4.5). The decision loop is single-threaded; dispatch
// itself runs on a sourcegraph/conc worker pool per pool tick, the same
// structured-concurrency pattern the teacher's fan-out dispatcher uses.
package scheduler

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/healthtracker"
	"github.com/solewatch/releasecore/internal/schema"
)

// Pipeline runs the fetch→parse→canonicalize path for one target,
// returning a classified *errs.E on failure so the scheduler can decide
// retry policy, or nil on success.
type Pipeline func(ctx context.Context, target schema.Target) error

const (
	defaultMaxParallelPerPool = 4
	backoffBase                = 60 * time.Second
	backoffCap                 = 30 * time.Minute
	quarantineDuration          = time.Hour
	jitterFraction              = 0.20
)

// entry is one target's scheduling state. PriorityScore and NextDueAt
// are scheduler-owned; Target itself is immutable configuration.
type entry struct {
	target        schema.Target
	priorityScore float64
	nextDueAt     time.Time
	inFlight      bool
}

// Scheduler holds one in-memory ready queue per proxy_pool_id and
// dispatches due targets to Pipeline, consulting a healthtracker.Tracker
// for circuit-breaker admission on every decision (spec.md §4.5).
type Scheduler struct {
	mu                 sync.Mutex
	byPool             map[string][]*entry
	maxParallelPerPool int
	health             *healthtracker.Tracker
	pipeline           Pipeline
	now                func() time.Time
	rand               *rand.Rand

	onQuarantine func(target schema.Target, reason string)
}

// New builds a Scheduler dispatching to pipeline, gated by health.
func New(health *healthtracker.Tracker, pipeline Pipeline) *Scheduler {
	return &Scheduler{
		byPool:             make(map[string][]*entry),
		maxParallelPerPool: defaultMaxParallelPerPool,
		health:             health,
		pipeline:           pipeline,
		now:                time.Now,
		rand:               rand.New(rand.NewSource(1)),
	}
}

// WithClock overrides the clock (for tests).
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithMaxParallelPerPool overrides the per-tick dispatch cap for each pool.
func (s *Scheduler) WithMaxParallelPerPool(n int) *Scheduler {
	if n > 0 {
		s.maxParallelPerPool = n
	}
	return s
}

// WithRandSource overrides the jitter PRNG source (for deterministic tests).
func (s *Scheduler) WithRandSource(src rand.Source) *Scheduler {
	s.rand = rand.New(src)
	return s
}

// OnQuarantine registers a callback invoked when a target is quarantined
// after a PermanentError, carrying the reason for logging (spec.md §4.5:
// "quarantine target for 1 hour, log reason").
func (s *Scheduler) OnQuarantine(fn func(target schema.Target, reason string)) *Scheduler {
	s.onQuarantine = fn
	return s
}

// AddTarget registers target in its pool's ready queue, due immediately.
func (s *Scheduler) AddTarget(target schema.Target, priorityScore float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	poolID := target.ProxyPoolID
	s.byPool[poolID] = append(s.byPool[poolID], &entry{
		target:        target,
		priorityScore: priorityScore,
		nextDueAt:     s.now().UTC(),
	})
}

// SetPriority updates a target's priority_score, which orders its pool's
// ready queue on later ticks.
func (s *Scheduler) SetPriority(targetID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entries := range s.byPool {
		for _, e := range entries {
			if e.target.TargetID == targetID {
				e.priorityScore = score
				return
			}
		}
	}
}

// Tick runs one dispatch round across every pool: selects ready targets
// (due, breaker-admitted, not already in flight), ordered by priority
// then oldest due time, up to maxParallelPerPool per pool, and drains
// each selected target's pipeline result through the retry/backoff/
// quarantine policy in spec.md §4.5.
func (s *Scheduler) Tick(ctx context.Context) {
	var wg sync.WaitGroup
	for poolID := range s.poolIDs() {
		wg.Add(1)
		go func(poolID string) {
			defer wg.Done()
			s.tickPool(ctx, poolID)
		}(poolID)
	}
	wg.Wait()
}

func (s *Scheduler) poolIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.byPool))
	for id := range s.byPool {
		out[id] = struct{}{}
	}
	return out
}

func (s *Scheduler) tickPool(ctx context.Context, poolID string) {
	selected := s.selectReady(poolID)
	if len(selected) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(s.maxParallelPerPool)
	for _, e := range selected {
		e := e
		p.Go(func() {
			err := s.pipeline(ctx, e.target)
			s.settle(e, err)
		})
	}
	p.Wait()
}

// selectReady picks up to maxParallelPerPool ready targets for poolID,
// preferring higher priority_score then older next_due_at, and marks
// them in-flight so a concurrent tick does not re-select them.
func (s *Scheduler) selectReady(poolID string) []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var ready []*entry
	for _, e := range s.byPool[poolID] {
		if e.inFlight || now.Before(e.nextDueAt) {
			continue
		}
		if admit, _ := s.health.Admit(e.target.TargetID); !admit {
			continue
		}
		ready = append(ready, e)
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].priorityScore != ready[j].priorityScore {
			return ready[i].priorityScore > ready[j].priorityScore
		}
		return ready[i].nextDueAt.Before(ready[j].nextDueAt)
	})

	if len(ready) > s.maxParallelPerPool {
		ready = ready[:s.maxParallelPerPool]
	}
	for _, e := range ready {
		e.inFlight = true
	}
	return ready
}

// settle applies spec.md §4.5's completion policy to one dispatched
// target, recording the outcome with the health tracker and computing
// the next due time.
func (s *Scheduler) settle(e *entry, err error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	e.inFlight = false

	if err == nil {
		s.health.Record(e.target.TargetID, healthtracker.OutcomeOk)
		e.nextDueAt = now.Add(jitter(e.target.CadenceDuration(), jitterFraction, s.rand))
		return
	}

	s.health.Record(e.target.TargetID, healthtracker.OutcomeFailure)
	envelope, _ := err.(*errs.E)

	switch {
	case envelope != nil && envelope.Kind == errs.KindFetchPermanent:
		e.nextDueAt = now.Add(quarantineDuration)
		if s.onQuarantine != nil {
			reason := envelope.Message
			if reason == "" {
				reason = string(envelope.Kind)
			}
			s.onQuarantine(e.target, reason)
		}
	default:
		health := s.health.Snapshot(e.target.TargetID)
		delay := exponentialBackoff(health.ConsecutiveFailures, backoffBase, backoffCap)
		if retryAfter := retryAfterOf(envelope); retryAfter > delay {
			delay = retryAfter
		}
		e.nextDueAt = now.Add(delay)
	}
}

func retryAfterOf(e *errs.E) time.Duration {
	if e == nil || e.Kind != errs.KindRateLimitExceeded {
		return 0
	}
	return e.RetryAfter
}

// jitter returns base randomized by ±fraction (spec.md §4.5:
// "jitter(expected_cadence_seconds, ±20%)").
func jitter(base time.Duration, fraction float64, r *rand.Rand) time.Duration {
	if base <= 0 {
		base = 45 * time.Second
	}
	spread := float64(base) * fraction
	offset := (r.Float64()*2 - 1) * spread
	d := time.Duration(float64(base) + offset)
	if d < 0 {
		d = 0
	}
	return d
}

// exponentialBackoff doubles base per consecutive failure, capped at max
// (spec.md §4.5: "exponential_backoff(consecutive_failures, base=60s,
// cap=30min)").
func exponentialBackoff(consecutiveFailures int, base, capDur time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return base
	}
	d := base
	for i := 1; i < consecutiveFailures; i++ {
		d *= 2
		if d >= capDur {
			return capDur
		}
	}
	return d
}
