// Package changedetect diffs a canonical release's pre- and post-image
// and emits the ordered ReleaseEvent stream the rest of the pipeline
// reacts to (spec.md §4.4).
package changedetect

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/schema"
)

// Detector produces ReleaseEvents from canonicalizer transitions. A
// per-release sequence counter guarantees a strictly total order for
// events on the same release even when DetectedAt ties at clock
// resolution (spec.md §8 invariant 2).
type Detector struct {
	now func() time.Time

	mu  sync.Mutex
	seq map[string]uint64
}

// New builds a Detector using time.Now as its clock.
func New() *Detector {
	return &Detector{now: time.Now, seq: make(map[string]uint64)}
}

// WithClock overrides the clock (for tests).
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Detect applies spec.md §4.4's rules to one canonicalizer transition,
// returning the emitted event, or nil when no event fires. ingestionStarted
// and aggregatorHits/socialMentions/restockLikelihood are batch-level
// features threaded through from the fetch/parse stage; priorityScore is
// filled in by the caller (internal/scoring) before the event is persisted.
func (d *Detector) Detect(t canon.Transition, ingestionStarted time.Time, aggregatorHits int, socialMentions *int, restockLikelihood *float64) *schema.ReleaseEvent {
	post := t.Post

	if t.Pre == nil {
		if post.Status == schema.StatusUnknown {
			return nil
		}
		return d.emit(t, schema.ReleaseEvent{
			StatusFrom: nil,
			StatusTo:   statusPtr(post.Status),
			PriceFrom:  nil,
			PriceTo:    clonePrice(post.Price),
		}, ingestionStarted, aggregatorHits, socialMentions, restockLikelihood)
	}

	pre := *t.Pre
	if pre.PayloadHash == post.PayloadHash {
		return nil
	}

	statusChanged := pre.Status != post.Status
	priceChanged := !schema.SamePriceAs(pre.Price, post.Price)

	switch {
	case statusChanged && priceChanged:
		return d.emit(t, schema.ReleaseEvent{
			StatusFrom: statusPtr(pre.Status),
			StatusTo:   statusPtr(post.Status),
			PriceFrom:  clonePrice(pre.Price),
			PriceTo:    clonePrice(post.Price),
		}, ingestionStarted, aggregatorHits, socialMentions, restockLikelihood)
	case statusChanged:
		return d.emit(t, schema.ReleaseEvent{
			StatusFrom: statusPtr(pre.Status),
			StatusTo:   statusPtr(post.Status),
		}, ingestionStarted, aggregatorHits, socialMentions, restockLikelihood)
	case priceChanged && (pre.Price != nil || post.Price != nil):
		return d.emit(t, schema.ReleaseEvent{
			StatusFrom: statusPtr(post.Status),
			StatusTo:   statusPtr(post.Status),
			PriceFrom:  clonePrice(pre.Price),
			PriceTo:    clonePrice(post.Price),
		}, ingestionStarted, aggregatorHits, socialMentions, restockLikelihood)
	default:
		return nil
	}
}

func (d *Detector) emit(t canon.Transition, partial schema.ReleaseEvent, ingestionStarted time.Time, aggregatorHits int, socialMentions *int, restockLikelihood *float64) *schema.ReleaseEvent {
	now := d.now().UTC()

	d.mu.Lock()
	d.seq[t.Post.ReleaseID]++
	seq := d.seq[t.Post.ReleaseID]
	d.mu.Unlock()

	// Guarantees strict total order per release even when two detections
	// land in the same clock tick.
	detectedAt := now.Add(time.Duration(seq) * time.Nanosecond)

	partial.EventID = uuid.New().String()
	partial.ReleaseID = t.Post.ReleaseID
	partial.Source = t.Post.Source
	partial.DetectedAt = detectedAt
	partial.IngestionStarted = ingestionStarted
	partial.IngestionCompleted = now
	partial.LatencyMS = detectedAt.Sub(ingestionStarted).Milliseconds()
	partial.AggregatorHits = aggregatorHits
	partial.SocialMentions = socialMentions
	partial.RestockLikelihood = restockLikelihood
	return &partial
}

func statusPtr(s schema.ReleaseStatus) *schema.ReleaseStatus {
	return &s
}

func clonePrice(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
