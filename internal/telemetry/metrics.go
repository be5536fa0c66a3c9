package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// Instruments bundles the counters and histograms shared across pipeline
// stages so every subsystem records to the same named metrics instead of
// inventing its own ad hoc names.
type Instruments struct {
	FetchOutcomes      metric.Int64Counter
	FetchLatency       metric.Float64Histogram
	ParseErrors        metric.Int64Counter
	CanonicalWrites     metric.Int64Counter
	QuarantineWrites    metric.Int64Counter
	EventsEmitted       metric.Int64Counter
	EventLatency        metric.Float64Histogram
	BreakerTransitions  metric.Int64Counter
	SchedulerDispatches metric.Int64Counter
	MatchesFound        metric.Int64Counter
	DeliveryAttempts    metric.Int64Counter
	DeliveryOutcomes    metric.Int64Counter
	DeadLetters         metric.Int64Counter
	RateLimited         metric.Int64Counter
}

// NewInstruments registers the shared instrument set against the given
// meter. Errors from individual registrations are ignored, matching the
// teacher's convention of degrading to no-op instruments rather than
// failing process startup over a metrics registration error.
func NewInstruments(meter metric.Meter) *Instruments {
	in := &Instruments{}
	in.FetchOutcomes, _ = meter.Int64Counter("fetch.outcomes", metric.WithDescription("Fetch adapter outcomes by kind"))
	in.FetchLatency, _ = meter.Float64Histogram("fetch.latency", metric.WithDescription("Fetch adapter latency"), metric.WithUnit("ms"))
	in.ParseErrors, _ = meter.Int64Counter("parser.errors", metric.WithDescription("Parser structural errors"))
	in.CanonicalWrites, _ = meter.Int64Counter("canonicalizer.writes", metric.WithDescription("Canonical release upserts"))
	in.QuarantineWrites, _ = meter.Int64Counter("canonicalizer.quarantine", metric.WithDescription("Records diverted to quarantine"))
	in.EventsEmitted, _ = meter.Int64Counter("changedetect.events", metric.WithDescription("Release events emitted by kind"))
	in.EventLatency, _ = meter.Float64Histogram("event.latency", metric.WithDescription("Detection latency from ingestion start"), metric.WithUnit("ms"))
	in.BreakerTransitions, _ = meter.Int64Counter("health.breaker.transitions", metric.WithDescription("Circuit breaker state transitions"))
	in.SchedulerDispatches, _ = meter.Int64Counter("scheduler.dispatches", metric.WithDescription("Targets dispatched per tick"))
	in.MatchesFound, _ = meter.Int64Counter("subscription.matches", metric.WithDescription("Subscriptions matched per event"))
	in.DeliveryAttempts, _ = meter.Int64Counter("delivery.attempts", metric.WithDescription("Delivery attempts by channel"))
	in.DeliveryOutcomes, _ = meter.Int64Counter("delivery.outcomes", metric.WithDescription("Delivery outcomes by channel and result"))
	in.DeadLetters, _ = meter.Int64Counter("delivery.dead_letters", metric.WithDescription("Dead-lettered deliveries by reason"))
	in.RateLimited, _ = meter.Int64Counter("fanout.rate_limited", metric.WithDescription("Events dead-lettered for exceeding a subscription's rate limit"))
	return in
}
