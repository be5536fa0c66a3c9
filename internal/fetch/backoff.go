package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryCalculator computes exponential backoff delays for transient
// fetch failures. It is a pure calculator: the Scheduler (internal/scheduler)
// owns actual re-dispatch timing, this type only answers "how long until
// the next attempt" given a failure count.
type RetryCalculator struct {
	base *backoff.ExponentialBackOff
}

// NewRetryCalculator builds a calculator with the given initial interval
// and maximum interval.
func NewRetryCalculator(initial, max time.Duration) *RetryCalculator {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Reset()
	return &RetryCalculator{base: b}
}

// NextDelay returns the delay before the next retry. Calling it repeatedly
// advances the internal exponential state; call Reset after a success.
func (r *RetryCalculator) NextDelay() time.Duration {
	return r.base.NextBackOff()
}

// Reset clears accumulated backoff state after a successful fetch.
func (r *RetryCalculator) Reset() {
	r.base.Reset()
}
