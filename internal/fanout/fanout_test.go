package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/storage/memstore"
	"github.com/solewatch/releasecore/internal/subscription"
)

func TestEnqueue_CreatesTaskPerChannel(t *testing.T) {
	store := memstore.New()
	q := New(store)
	ctx := context.Background()

	sub := schema.UserSubscription{
		SubscriptionID: "s1", UserID: "u1",
		Channels: []schema.Channel{{Kind: schema.ChannelEmail}, {Kind: schema.ChannelDiscord}},
	}
	event := schema.ReleaseEvent{EventID: "e1", ReleaseID: "r1"}
	release := schema.CanonicalRelease{ReleaseID: "r1", Name: "AJ1 Bred"}

	require.NoError(t, q.Enqueue(ctx, event, release, subscription.Match{UserID: "u1", SubscriptionID: "s1", Subscription: sub}))

	email, err := store.LeaseTask(ctx, schema.ChannelEmail, "worker", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, email)
	assert.Equal(t, "u1", email.UserID)

	discord, err := store.LeaseTask(ctx, schema.ChannelDiscord, "worker", time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, discord)
	assert.Equal(t, "u1", discord.UserID)
}

func TestEnqueue_RateLimitDeadLetters(t *testing.T) {
	store := memstore.New()
	q := New(store)
	ctx := context.Background()
	limit := 2

	sub := schema.UserSubscription{
		SubscriptionID: "s1", UserID: "u1", MaxEventsPerHour: &limit,
		Channels: []schema.Channel{{Kind: schema.ChannelEmail}},
	}
	now := time.Unix(0, 0)
	q.WithClock(func() time.Time { return now })

	_, _ = store.IncrementRate(ctx, "u1", now)
	_, _ = store.IncrementRate(ctx, "u1", now)

	match := subscription.Match{UserID: "u1", SubscriptionID: "s1", Subscription: sub}
	require.NoError(t, q.Enqueue(ctx, schema.ReleaseEvent{EventID: "e1"}, schema.CanonicalRelease{}, match))

	dls := store.DeadLetters()
	require.Len(t, dls, 1)
	assert.Equal(t, "rate_limited", dls[0].Reason)

	task, err := store.LeaseTask(ctx, schema.ChannelEmail, "worker", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, task)
}

// TestEnqueue_PerUserFIFOOrder exercises ordering through the same path
// Delivery Workers use (Store.LeaseTask), not just the producer side, so
// it catches a lease-order regression like the one memstore previously
// had (sorting leasable tasks by task_id, a random UUID, instead of
// creation order).
func TestEnqueue_PerUserFIFOOrder(t *testing.T) {
	store := memstore.New()
	q := New(store)
	ctx := context.Background()
	sub := schema.UserSubscription{SubscriptionID: "s1", UserID: "u1", Channels: []schema.Channel{{Kind: schema.ChannelEmail}}}
	match := subscription.Match{UserID: "u1", SubscriptionID: "s1", Subscription: sub}

	now := time.Unix(1000, 0)
	q.WithClock(func() time.Time { return now })

	require.NoError(t, q.Enqueue(ctx, schema.ReleaseEvent{EventID: "e1"}, schema.CanonicalRelease{}, match))
	require.NoError(t, q.Enqueue(ctx, schema.ReleaseEvent{EventID: "e2"}, schema.CanonicalRelease{}, match))
	require.NoError(t, q.Enqueue(ctx, schema.ReleaseEvent{EventID: "e3"}, schema.CanonicalRelease{}, match))

	var leased []string
	for i := 0; i < 3; i++ {
		task, err := store.LeaseTask(ctx, schema.ChannelEmail, "worker", now.Add(time.Minute))
		require.NoError(t, err)
		require.NotNil(t, task)
		leased = append(leased, task.EventID)
	}
	assert.Equal(t, []string{"e1", "e2", "e3"}, leased)
}
