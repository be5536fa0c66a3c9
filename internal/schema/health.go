package schema

import "time"

// BreakerState is the circuit-breaker position for a target.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// ScraperHealth is one row per target, continuously updated by the Fetch
// Adapter's outcomes and consulted by the Scheduler on every dispatch
// decision.
type ScraperHealth struct {
	TargetID            string
	LastSuccessAt       time.Time
	ConsecutiveFailures int
	BreakerState        BreakerState
	BreakerOpenedAt     time.Time
	ProxyPool           string
}
