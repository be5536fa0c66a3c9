// Package ratecounter tracks per-(user_id, hour_bucket) delivery counts
// used to enforce a subscription's max_events_per_hour (spec.md §3, §4.9).
package ratecounter

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// HourBucket returns floor(t / 1 hour) as a stable bucket key (spec.md
// GLOSSARY: "Hour bucket").
func HourBucket(t time.Time) int64 {
	return t.UTC().Unix() / int64(time.Hour/time.Second)
}

// Counter maintains atomic per-(user_id, hour_bucket) integers, garbage
// collected after 48 hours (spec.md §3).
type Counter struct {
	mu      sync.Mutex
	buckets map[string]*int64
	seen    map[string]int64 // key -> bucket, for GC
}

// New builds an empty Counter.
func New() *Counter {
	return &Counter{
		buckets: make(map[string]*int64),
		seen:    make(map[string]int64),
	}
}

func key(userID string, bucket int64) string {
	return userID + "#" + strconv.FormatInt(bucket, 10)
}

// Count returns the current count for (userID, now)'s hour bucket
// without incrementing it.
func (c *Counter) Count(userID string, now time.Time) int64 {
	k := key(userID, HourBucket(now))
	c.mu.Lock()
	ptr := c.buckets[k]
	c.mu.Unlock()
	if ptr == nil {
		return 0
	}
	return atomic.LoadInt64(ptr)
}

// Increment atomically increments (userID, now)'s hour bucket and
// returns the new count. Called only on successful delivery, per
// spec.md §4.10 and §8 invariant 4.
func (c *Counter) Increment(userID string, now time.Time) int64 {
	bucket := HourBucket(now)
	k := key(userID, bucket)

	c.mu.Lock()
	ptr, ok := c.buckets[k]
	if !ok {
		var v int64
		ptr = &v
		c.buckets[k] = ptr
		c.seen[k] = bucket
	}
	c.mu.Unlock()

	return atomic.AddInt64(ptr, 1)
}

// Exceeds reports whether incrementing would push (userID, now)'s
// count past limit. A nil limit means unbounded (spec.md §3:
// "max_events_per_hour?").
func (c *Counter) Exceeds(userID string, now time.Time, limit *int) bool {
	if limit == nil {
		return false
	}
	return c.Count(userID, now) >= int64(*limit)
}

// GC drops every bucket older than 48 hours relative to now (spec.md §3).
func (c *Counter) GC(now time.Time) {
	cutoff := HourBucket(now) - 48
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, bucket := range c.seen {
		if bucket < cutoff {
			delete(c.buckets, k)
			delete(c.seen, k)
		}
	}
}
