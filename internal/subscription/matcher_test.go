package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solewatch/releasecore/internal/schema"
)

func strSet(vals ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

func TestMatch_TwoSubscriptionsViaBrandAndSKU(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s1", UserID: "u1", BrandFilter: strSet("Jordan")})
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s2", UserID: "u2", SKUFilter: strSet("DZ5485-612")})

	release := schema.CanonicalRelease{Brand: "Jordan", SKU: "DZ5485-612"}
	matches := idx.Match(release)
	assert.Len(t, matches, 2)
}

func TestMatch_EmptyFilterMatchesAll(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s1", UserID: "u1"})

	matches := idx.Match(schema.CanonicalRelease{Brand: "Asics"})
	assert.Len(t, matches, 1)
}

func TestMatch_RegionFilterRequiresNonNullRegion(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s1", UserID: "u1", RegionFilter: strSet("US")})

	noRegion := idx.Match(schema.CanonicalRelease{})
	assert.Len(t, noRegion, 0)

	withRegion := idx.Match(schema.CanonicalRelease{Region: "US"})
	assert.Len(t, withRegion, 1)
}

func TestMatch_SizeFilterRequiresAvailability(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s1", UserID: "u1", SizeFilter: []string{"10"}})

	release := schema.CanonicalRelease{
		StockSummary: schema.StockSummary{"10": {Total: 5, Available: 0}},
	}
	assert.Len(t, idx.Match(release), 0)

	release.StockSummary["10"] = schema.SizeAvailability{Total: 5, Available: 2}
	assert.Len(t, idx.Match(release), 1)
}

func TestMatch_ANDCombinesAllFilters(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{
		SubscriptionID: "s1", UserID: "u1",
		BrandFilter: strSet("Nike"), RegionFilter: strSet("US"),
	})

	assert.Len(t, idx.Match(schema.CanonicalRelease{Brand: "Nike", Region: "EU"}), 0)
	assert.Len(t, idx.Match(schema.CanonicalRelease{Brand: "Nike", Region: "US"}), 1)
}

func TestRemove(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(schema.UserSubscription{SubscriptionID: "s1", UserID: "u1", BrandFilter: strSet("Nike")})
	idx.Remove("s1")
	assert.Len(t, idx.Match(schema.CanonicalRelease{Brand: "Nike"}), 0)
}
