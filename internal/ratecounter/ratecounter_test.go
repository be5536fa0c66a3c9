package ratecounter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIncrementAndExceeds(t *testing.T) {
	c := New()
	now := time.Unix(0, 0)
	limit := 2

	assert.False(t, c.Exceeds("u1", now, &limit))
	c.Increment("u1", now)
	assert.False(t, c.Exceeds("u1", now, &limit))
	c.Increment("u1", now)
	assert.True(t, c.Exceeds("u1", now, &limit))
}

func TestExceedsNilLimitNeverExceeds(t *testing.T) {
	c := New()
	now := time.Unix(0, 0)
	for i := 0; i < 100; i++ {
		c.Increment("u1", now)
	}
	assert.False(t, c.Exceeds("u1", now, nil))
}

func TestDifferentHourBucketsAreIndependent(t *testing.T) {
	c := New()
	t1 := time.Unix(0, 0)
	t2 := t1.Add(2 * time.Hour)
	limit := 1

	c.Increment("u1", t1)
	assert.True(t, c.Exceeds("u1", t1, &limit))
	assert.False(t, c.Exceeds("u1", t2, &limit))
}

func TestGCDropsOldBuckets(t *testing.T) {
	c := New()
	old := time.Unix(0, 0)
	c.Increment("u1", old)
	assert.Equal(t, int64(1), c.Count("u1", old))

	c.GC(old.Add(49 * time.Hour))
	assert.Equal(t, int64(0), c.Count("u1", old))
}
