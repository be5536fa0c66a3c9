package changedetect

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/schema"
)

func TestDetect_NewReleaseCreatesEvent(t *testing.T) {
	d := New()
	price := decimal.NewFromInt(180)
	post := schema.CanonicalRelease{
		ReleaseID: "r1",
		Source:    "nike",
		Status:    schema.StatusUpcoming,
		Price:     &price,
	}

	ev := d.Detect(canon.Transition{Pre: nil, Post: post}, time.Unix(0, 0), 0, nil, nil)
	require.NotNil(t, ev)
	assert.Nil(t, ev.StatusFrom)
	assert.Equal(t, schema.StatusUpcoming, *ev.StatusTo)
	assert.Nil(t, ev.PriceFrom)
	assert.True(t, price.Equal(*ev.PriceTo))
}

func TestDetect_UnknownStatusCreateIsSuppressed(t *testing.T) {
	d := New()
	post := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusUnknown}
	ev := d.Detect(canon.Transition{Pre: nil, Post: post}, time.Unix(0, 0), 0, nil, nil)
	assert.Nil(t, ev)
}

func TestDetect_StatusChange(t *testing.T) {
	d := New()
	pre := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusUpcoming, PayloadHash: "a"}
	post := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusLive, PayloadHash: "b"}

	ev := d.Detect(canon.Transition{Pre: &pre, Post: post}, time.Unix(0, 0), 0, nil, nil)
	require.NotNil(t, ev)
	assert.Equal(t, schema.StatusUpcoming, *ev.StatusFrom)
	assert.Equal(t, schema.StatusLive, *ev.StatusTo)
	assert.Nil(t, ev.PriceFrom)
	assert.Nil(t, ev.PriceTo)
}

func TestDetect_PriceChangeOnly(t *testing.T) {
	d := New()
	oldPrice := decimal.NewFromInt(180)
	newPrice := decimal.NewFromInt(150)
	pre := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusLive, Price: &oldPrice, PayloadHash: "a"}
	post := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusLive, Price: &newPrice, PayloadHash: "b"}

	ev := d.Detect(canon.Transition{Pre: &pre, Post: post}, time.Unix(0, 0), 0, nil, nil)
	require.NotNil(t, ev)
	assert.Equal(t, schema.StatusLive, *ev.StatusFrom)
	assert.Equal(t, schema.StatusLive, *ev.StatusTo)
	assert.True(t, oldPrice.Equal(*ev.PriceFrom))
	assert.True(t, newPrice.Equal(*ev.PriceTo))
}

func TestDetect_SamePayloadHashNoEvent(t *testing.T) {
	d := New()
	pre := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusLive, PayloadHash: "a"}
	post := pre
	ev := d.Detect(canon.Transition{Pre: &pre, Post: post}, time.Unix(0, 0), 0, nil, nil)
	assert.Nil(t, ev)
}

func TestDetect_TotalOrderPerRelease(t *testing.T) {
	d := New()
	fixed := time.Unix(1000, 0)
	d.WithClock(func() time.Time { return fixed })

	pre1 := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusUpcoming, PayloadHash: "a"}
	post1 := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusLive, PayloadHash: "b"}
	e1 := d.Detect(canon.Transition{Pre: &pre1, Post: post1}, fixed, 0, nil, nil)

	pre2 := post1
	post2 := schema.CanonicalRelease{ReleaseID: "r1", Status: schema.StatusSoldOut, PayloadHash: "c"}
	e2 := d.Detect(canon.Transition{Pre: &pre2, Post: post2}, fixed, 0, nil, nil)

	require.NotNil(t, e1)
	require.NotNil(t, e2)
	assert.True(t, e2.DetectedAt.After(e1.DetectedAt) || e2.DetectedAt.Equal(e1.DetectedAt))
	assert.True(t, !e2.DetectedAt.Before(e1.DetectedAt))
}
