package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind distinguishes why a ReleaseEvent was produced. It is not a
// persisted field on ReleaseEvent itself (spec.md §3), but is useful for
// routing and metrics.
type EventKind string

const (
	EventKindCreated       EventKind = "created"
	EventKindStatusChange  EventKind = "status_change"
	EventKindPriceChange   EventKind = "price_change"
)

// ReleaseEvent is an immutable state-transition record.
type ReleaseEvent struct {
	EventID             string
	ReleaseID           string
	Source              string
	StatusFrom          *ReleaseStatus
	StatusTo            *ReleaseStatus
	PriceFrom           *decimal.Decimal
	PriceTo             *decimal.Decimal
	DetectedAt          time.Time
	IngestionStarted    time.Time
	IngestionCompleted  time.Time
	LatencyMS           int64
	AggregatorHits      int
	SocialMentions      *int
	RestockLikelihood   *float64
	PriorityScore       float64
}

// Kind classifies the event for routing/metrics purposes. It mirrors the
// Change Detector's classification rules in spec.md §4.4.
func (e ReleaseEvent) Kind() EventKind {
	if e.StatusFrom == nil && e.PriceFrom == nil {
		return EventKindCreated
	}
	statusChanged := e.StatusFrom != nil && e.StatusTo != nil && *e.StatusFrom != *e.StatusTo
	if statusChanged {
		return EventKindStatusChange
	}
	return EventKindPriceChange
}
