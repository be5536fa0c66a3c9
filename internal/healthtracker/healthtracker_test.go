package healthtracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solewatch/releasecore/internal/schema"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	tr := New(3, 15*time.Minute)
	for i := 0; i < 2; i++ {
		h := tr.Record("t1", OutcomeFailure)
		assert.Equal(t, schema.BreakerClosed, h.BreakerState)
	}
	h := tr.Record("t1", OutcomeFailure)
	assert.Equal(t, schema.BreakerOpen, h.BreakerState)
	assert.Equal(t, 3, h.ConsecutiveFailures)
}

func TestAdmitDeniesWhileOpenThenAllowsSingleProbe(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := New(3, 15*time.Minute).WithClock(func() time.Time { return now })
	for i := 0; i < 3; i++ {
		tr.Record("t1", OutcomeFailure)
	}

	admit, probe := tr.Admit("t1")
	assert.False(t, admit)
	assert.False(t, probe)

	now = now.Add(16 * time.Minute)
	admit, probe = tr.Admit("t1")
	assert.True(t, admit)
	assert.True(t, probe)

	// A second dispatch decision before the probe resolves must not admit
	// a concurrent probe.
	admit, probe = tr.Admit("t1")
	assert.False(t, admit)
	assert.False(t, probe)
}

func TestHalfOpenClosesOnSuccess(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := New(3, 15*time.Minute).WithClock(func() time.Time { return now })
	for i := 0; i < 3; i++ {
		tr.Record("t1", OutcomeFailure)
	}
	now = now.Add(16 * time.Minute)
	tr.Admit("t1")

	h := tr.Record("t1", OutcomeOk)
	assert.Equal(t, schema.BreakerClosed, h.BreakerState)
	assert.Equal(t, 0, h.ConsecutiveFailures)
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	now := time.Unix(1000, 0)
	tr := New(3, 15*time.Minute).WithClock(func() time.Time { return now })
	for i := 0; i < 3; i++ {
		tr.Record("t1", OutcomeFailure)
	}
	now = now.Add(16 * time.Minute)
	tr.Admit("t1")

	h := tr.Record("t1", OutcomeFailure)
	assert.Equal(t, schema.BreakerOpen, h.BreakerState)
}
