// Package scoring computes the deterministic priority_score attached to
// every ReleaseEvent (spec.md §4.8): priority = sigmoid(w . features).
package scoring

import (
	"math"
	"strings"

	"github.com/solewatch/releasecore/internal/config"
	"github.com/solewatch/releasecore/internal/schema"
)

// statusWeight is the fixed per-status contribution named in spec.md
// §4.8. Not part of the versioned model file: the status set is closed
// and spec-defined, unlike the feature weights.
var statusWeight = map[schema.ReleaseStatus]float64{
	schema.StatusLive:         1.0,
	schema.StatusRaffleOpen:   0.9,
	schema.StatusRestock:      0.8,
	schema.StatusUpcoming:     0.3,
}

func statusWeightFor(s schema.ReleaseStatus) float64 {
	if w, ok := statusWeight[s]; ok {
		return w
	}
	return 0.1
}

// brandPopularity is a small documented lookup of known high-demand
// brands; any brand absent from the table scores a neutral baseline.
// A production deployment would source this from an analytics feed;
// this module ships the default set used when no override is wired.
var brandPopularity = map[string]float64{
	"nike":         0.9,
	"jordan":       1.0,
	"adidas":       0.7,
	"new balance":  0.6,
	"asics":        0.5,
}

func brandPopularityFor(brand string) float64 {
	if w, ok := brandPopularity[strings.ToLower(strings.TrimSpace(brand))]; ok {
		return w
	}
	return 0.3
}

// Scorer computes priority_score from a versioned weight model, falling
// back to config.DefaultScoringWeights when no model file was loaded.
type Scorer struct {
	weights config.ScoringWeights
}

// New builds a Scorer bound to the given weights (spec.md §4.8: "Weights
// w ... are loaded from a versioned model record").
func New(weights config.ScoringWeights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes priority_score for one event against its owning
// release. Pure and reproducible: identical inputs and weight version
// always yield the identical score.
func (s *Scorer) Score(event schema.ReleaseEvent, release schema.CanonicalRelease) float64 {
	w := s.weights

	f := w.Bias
	f += brandPopularityFor(release.Brand) * 0.4
	f += statusWeightFor(statusOf(event, release)) * 1.0
	f += w.AggregatorHits * float64(event.AggregatorHits)

	if event.SocialMentions != nil {
		f += w.SocialMentions * float64(*event.SocialMentions)
	}
	if event.RestockLikelihood != nil {
		f += w.RestockLikelihood * *event.RestockLikelihood
	}

	switch event.Kind() {
	case schema.EventKindCreated:
		f += w.IsCreatedEvent
	case schema.EventKindPriceChange:
		f += priceVolatility(event) * w.IsPriceDropEvent
	}
	if statusOf(event, release) == schema.StatusRestock {
		f += w.IsRestockEvent
	}

	minutes := minutesSinceRelease(event, release)
	f += w.MinutesSinceRelease * minutes

	return sigmoid(f)
}

func statusOf(event schema.ReleaseEvent, release schema.CanonicalRelease) schema.ReleaseStatus {
	if event.StatusTo != nil {
		return *event.StatusTo
	}
	return release.Status
}

// priceVolatility returns a signal in [0,1] proportional to the relative
// size of a price drop; zero for a price increase or when either price
// is unset (handled by the caller via event.Kind()).
func priceVolatility(event schema.ReleaseEvent) float64 {
	if event.PriceFrom == nil || event.PriceTo == nil {
		return 0
	}
	from, _ := event.PriceFrom.Float64()
	to, _ := event.PriceTo.Float64()
	if from <= 0 || to >= from {
		return 0
	}
	drop := (from - to) / from
	if drop > 1 {
		drop = 1
	}
	return drop
}

func minutesSinceRelease(event schema.ReleaseEvent, release schema.CanonicalRelease) float64 {
	if release.ReleaseDate == nil {
		return 0
	}
	d := event.DetectedAt.Sub(*release.ReleaseDate).Minutes()
	if d < 0 {
		return 0
	}
	return d
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
