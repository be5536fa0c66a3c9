package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solewatch/releasecore/internal/schema"
)

func TestAppendStockSnapshot_ElidesUnchanged(t *testing.T) {
	s := New()
	ctx := context.Background()
	snap := schema.StockSnapshot{ReleaseID: "r1", Sizes: schema.StockSummary{"10": {Total: 5, Available: 2}}}

	ok, err := s.AppendStockSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AppendStockSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.False(t, ok)

	snap.Sizes = schema.StockSummary{"10": {Total: 5, Available: 1}}
	ok, err = s.AppendStockSnapshot(ctx, snap)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseTask_ExclusiveAndExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	task := schema.DeliveryTask{TaskID: "t1", UserID: "u1", Channel: schema.Channel{Kind: schema.ChannelEmail}, Status: schema.DeliveryPending}
	require.NoError(t, s.EnqueueTask(ctx, task))

	leased, err := s.LeaseTask(ctx, schema.ChannelEmail, "worker-1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, leased)

	none, err := s.LeaseTask(ctx, schema.ChannelEmail, "worker-2", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, none)

	expired, err := s.LeaseTask(ctx, schema.ChannelEmail, "worker-3", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestLeaseTask_OrdersByCreationNotTaskID(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(500, 0)
	s.WithClock(func() time.Time { return now })

	// task_id is a UUID, so ascending-task_id order is unrelated to
	// creation order; deliberately enqueue with task_ids that would sort
	// the other way round to prove LeaseTask does not use them.
	ids := []string{"zzz-last-created", "aaa-first-created", "mmm-second-created"}
	order := []int{1, 2, 0} // enqueue aaa, mmm, zzz -> creation order aaa, mmm, zzz
	for _, i := range order {
		task := schema.DeliveryTask{
			TaskID: ids[i], UserID: "u1", Channel: schema.Channel{Kind: schema.ChannelEmail},
			Status: schema.DeliveryPending, NextAttemptAt: now,
		}
		require.NoError(t, s.EnqueueTask(ctx, task))
	}

	var leased []string
	for i := 0; i < 3; i++ {
		task, err := s.LeaseTask(ctx, schema.ChannelEmail, "worker", now.Add(time.Minute))
		require.NoError(t, err)
		require.NotNil(t, task)
		leased = append(leased, task.TaskID)
	}
	assert.Equal(t, []string{"aaa-first-created", "mmm-second-created", "zzz-last-created"}, leased)
}

func TestCompleteTask_ReleasesLease(t *testing.T) {
	s := New()
	ctx := context.Background()
	task := schema.DeliveryTask{TaskID: "t1", Channel: schema.Channel{Kind: schema.ChannelPush}, Status: schema.DeliveryPending}
	require.NoError(t, s.EnqueueTask(ctx, task))
	_, err := s.LeaseTask(ctx, schema.ChannelPush, "worker-1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.CompleteTask(ctx, "t1", schema.DeliverySent, time.Time{}))
	got, ok := s.Task("t1")
	require.True(t, ok)
	assert.Equal(t, schema.DeliverySent, got.Status)
	assert.Empty(t, got.LeaseOwner)
}

func TestIncrementRate(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Unix(0, 0)

	n, err := s.IncrementRate(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.RateCount(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestQuarantineAssignsID(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Quarantine(ctx, schema.QuarantineRecord{Reason: "missing_sku_nike_jordan"}))
	recs := s.Quarantines()
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].ID)
}
