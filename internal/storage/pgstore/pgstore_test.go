package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/solewatch/releasecore/internal/schema"
)

func TestStoreNilPool(t *testing.T) {
	store := New(nil)
	ctx := context.Background()

	_, err := store.Get(ctx, "r1")
	assert.Error(t, err)

	_, err = store.Insert(ctx, schema.CanonicalRelease{ReleaseID: "r1"})
	assert.Error(t, err)

	assert.Error(t, store.AppendEvent(ctx, schema.ReleaseEvent{EventID: "e1"}))
	_, err = store.AppendStockSnapshot(ctx, schema.StockSnapshot{ReleaseID: "r1"})
	assert.Error(t, err)

	_, err = store.LoadSubscriptionsByBrandOrSKU(ctx, "nike", "")
	assert.Error(t, err)

	assert.Error(t, store.UpdateHealth(ctx, schema.ScraperHealth{TargetID: "t1"}))
	assert.Error(t, store.EnqueueTask(ctx, schema.DeliveryTask{TaskID: "task1"}))

	_, err = store.LeaseTask(ctx, schema.ChannelEmail, "worker-1", time.Now().Add(time.Minute))
	assert.Error(t, err)

	assert.Error(t, store.CompleteTask(ctx, "task1", schema.DeliverySent, time.Time{}))
	assert.Error(t, store.DeadLetter(ctx, schema.DeadLetter{ID: "d1"}))
	assert.Error(t, store.Quarantine(ctx, schema.QuarantineRecord{ID: "q1"}))

	_, err = store.IncrementRate(ctx, "u1", time.Now())
	assert.Error(t, err)
	_, err = store.RateCount(ctx, "u1", time.Now())
	assert.Error(t, err)
}

func TestPriceTextRoundTrip(t *testing.T) {
	d, err := priceFromText(nil)
	assert.NoError(t, err)
	assert.Nil(t, d)

	text := "129.99"
	d, err = priceFromText(&text)
	assert.NoError(t, err)
	if assert.NotNil(t, d) {
		assert.Equal(t, "129.99", d.String())
	}

	assert.Nil(t, priceArg(nil))
	price := *d
	got := priceArg(&price)
	if assert.NotNil(t, got) {
		assert.Equal(t, "129.99", *got)
	}
}

func TestToSet(t *testing.T) {
	assert.Nil(t, toSet(nil))
	set := toSet([]string{"nike", "jordan"})
	_, hasNike := set["nike"]
	_, hasJordan := set["jordan"]
	assert.True(t, hasNike)
	assert.True(t, hasJordan)
	assert.Len(t, set, 2)
}
