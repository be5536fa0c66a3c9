package canon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/solewatch/releasecore/internal/schema"
)

func TestReleaseID_PrefersSKUOverTitle(t *testing.T) {
	withSKU := schema.RawRelease{Source: "retailer-a", Title: "Air Jordan 1 Retro High", SKU: "555088-101"}
	sameSKUOtherTitle := schema.RawRelease{Source: "retailer-a", Title: "A Completely Different Title", SKU: "555088-101"}
	assert.Equal(t, ReleaseID(withSKU), ReleaseID(sameSKUOtherTitle), "release_id must be derived from SKU, not title, once a SKU is present")
}

func TestReleaseID_NormalizesSKUCaseAndWhitespace(t *testing.T) {
	a := schema.RawRelease{Source: "retailer-a", SKU: "dd1391-100"}
	b := schema.RawRelease{Source: "retailer-a", SKU: " DD 1391 - 100 "}
	assert.Equal(t, ReleaseID(a), ReleaseID(b), "SKU comparison must be case- and whitespace-insensitive")
}

func TestReleaseID_FallsBackToTitleSlugWithoutSKU(t *testing.T) {
	a := schema.RawRelease{Source: "retailer-a", Title: "New Balance 550 White Green"}
	b := schema.RawRelease{Source: "retailer-a", Title: "  NEW balance   550 -- White Green!! "}
	assert.Equal(t, ReleaseID(a), ReleaseID(b), "slug() should normalize case, punctuation, and whitespace to the same id")
}

func TestReleaseID_DiffersAcrossSources(t *testing.T) {
	a := schema.RawRelease{Source: "retailer-a", SKU: "555088-101"}
	b := schema.RawRelease{Source: "retailer-b", SKU: "555088-101"}
	assert.NotEqual(t, ReleaseID(a), ReleaseID(b), "the same SKU from two sources is not the same identity until canonicalized")
}

func TestPayloadHash_StableAcrossFieldOrderInsensitiveInput(t *testing.T) {
	price := decimal.NewFromFloat(220.00)
	date := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r1 := schema.RawRelease{
		SKU: "dd1391-100", Brand: "Nike", Title: "Air Force 1", Price: &price, Currency: "usd",
		ReleaseDate: &date, StatusRaw: "live",
		SizeAvailability: map[string]schema.SizeAvailability{"10": {Total: 5, Available: 2}, "9": {Total: 3, Available: 0}},
	}
	r2 := r1
	r2.SizeAvailability = map[string]schema.SizeAvailability{"9": {Total: 3, Available: 0}, "10": {Total: 5, Available: 2}}
	assert.Equal(t, PayloadHash(r1), PayloadHash(r2), "map iteration order must not affect the fingerprint")
}

func TestPayloadHash_ChangesWhenStockChanges(t *testing.T) {
	base := schema.RawRelease{SKU: "dd1391-100", Brand: "Nike", Title: "Air Force 1", StatusRaw: "live",
		SizeAvailability: map[string]schema.SizeAvailability{"10": {Total: 5, Available: 2}}}
	changed := base
	changed.SizeAvailability = map[string]schema.SizeAvailability{"10": {Total: 5, Available: 0}}
	assert.NotEqual(t, PayloadHash(base), PayloadHash(changed))
}

func TestPayloadHash_IdenticalInputIsIdempotent(t *testing.T) {
	r := schema.RawRelease{SKU: "dd1391-100", Brand: "Nike", Title: "Air Force 1", StatusRaw: "live"}
	assert.Equal(t, PayloadHash(r), PayloadHash(r))
}
