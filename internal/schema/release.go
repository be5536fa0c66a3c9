package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReleaseStatus is the canonical release lifecycle status.
type ReleaseStatus string

const (
	StatusUpcoming     ReleaseStatus = "UPCOMING"
	StatusLive         ReleaseStatus = "LIVE"
	StatusRaffleOpen   ReleaseStatus = "RAFFLE_OPEN"
	StatusRaffleClosed ReleaseStatus = "RAFFLE_CLOSED"
	StatusRestock      ReleaseStatus = "RESTOCK"
	StatusSoldOut      ReleaseStatus = "SOLD_OUT"
	StatusDelayed      ReleaseStatus = "DELAYED"
	StatusUnknown      ReleaseStatus = "UNKNOWN"
)

// SizeAvailability is one size-label's observed stock counters.
type SizeAvailability struct {
	Total     int
	Available int
}

// RawRelease is the transient output of parsing one target. It is never
// persisted directly; the Canonicalizer consumes it and produces a
// CanonicalRelease.
type RawRelease struct {
	Source           string
	SourceID         string
	Title            string
	Brand            string
	SKU              string
	Price            *decimal.Decimal
	Currency         string
	ReleaseDate      *time.Time
	StatusRaw        string
	URL              string
	ImageURL         string
	SizeAvailability map[string]SizeAvailability
}

// StockSummary aggregates size availability for a canonical release.
type StockSummary map[string]SizeAvailability

// AnyAvailable reports whether any of the given sizes has Available > 0.
func (s StockSummary) AnyAvailable(sizes []string) bool {
	for _, size := range sizes {
		if entry, ok := s[size]; ok && entry.Available > 0 {
			return true
		}
	}
	return false
}

// CanonicalRelease is the deduplicated release entity. ReleaseID is
// immutable across updates once assigned.
type CanonicalRelease struct {
	ReleaseID    string
	SKU          string
	Brand        string
	Name         string
	Status       ReleaseStatus
	Price        *decimal.Decimal
	Currency     string
	ReleaseDate  *time.Time
	Region       string
	Source       string
	FirstSeenAt  time.Time
	UpdatedAt    time.Time
	StockSummary StockSummary
	PayloadHash  string
}

// Clone returns a deep copy suitable for pre-image/post-image comparison
// without aliasing mutable fields.
func (c CanonicalRelease) Clone() CanonicalRelease {
	clone := c
	if c.Price != nil {
		p := *c.Price
		clone.Price = &p
	}
	if c.ReleaseDate != nil {
		d := *c.ReleaseDate
		clone.ReleaseDate = &d
	}
	if c.StockSummary != nil {
		clone.StockSummary = make(StockSummary, len(c.StockSummary))
		for k, v := range c.StockSummary {
			clone.StockSummary[k] = v
		}
	}
	return clone
}

// SamePriceAs reports whether two optional prices are equal, treating two
// nils as equal.
func SamePriceAs(a, b *decimal.Decimal) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Equal(*b)
}

// StockSnapshot is a point-in-time sample of size availability for a
// release. Append-only; elided when semantically equal to the prior
// snapshot for the same release.
type StockSnapshot struct {
	ReleaseID  string
	ObservedAt time.Time
	Sizes      StockSummary
}

// Equal reports whether two stock summaries are semantically equal.
func (s StockSummary) Equal(other StockSummary) bool {
	if len(s) != len(other) {
		return false
	}
	for k, v := range s {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}
