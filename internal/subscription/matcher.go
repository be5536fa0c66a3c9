// Package subscription matches a ReleaseEvent against user subscriptions
// (spec.md §4.7), maintaining inverted indexes keyed by brand and sku so
// large subscription sets can be matched efficiently.
package subscription

import (
	"strings"
	"sync"

	"github.com/solewatch/releasecore/internal/schema"
)

// Match identifies one subscription that matched an event.
type Match struct {
	UserID         string
	SubscriptionID string
	Subscription   schema.UserSubscription
}

// Index maintains inverted brand/sku indexes over a set of subscriptions
// plus a fallback list for subscriptions that filter on neither (spec.md
// §4.7: "full-scan fallback is allowed when both brand and sku filters
// are absent on a subscription").
type Index struct {
	mu sync.RWMutex

	byID     map[string]schema.UserSubscription
	byBrand  map[string]map[string]struct{}
	bySKU    map[string]map[string]struct{}
	fallback map[string]struct{}
}

// NewIndex builds an empty Index.
func NewIndex() *Index {
	return &Index{
		byID:     make(map[string]schema.UserSubscription),
		byBrand:  make(map[string]map[string]struct{}),
		bySKU:    make(map[string]map[string]struct{}),
		fallback: make(map[string]struct{}),
	}
}

// Upsert installs or replaces one subscription, rebuilding its index
// entries incrementally.
func (idx *Index) Upsert(sub schema.UserSubscription) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(sub.SubscriptionID)
	idx.byID[sub.SubscriptionID] = sub

	switch {
	case sub.HasBrandFilter():
		for brand := range sub.BrandFilter {
			key := normalizeKey(brand)
			if idx.byBrand[key] == nil {
				idx.byBrand[key] = make(map[string]struct{})
			}
			idx.byBrand[key][sub.SubscriptionID] = struct{}{}
		}
	case sub.HasSKUFilter():
		for sku := range sub.SKUFilter {
			key := normalizeKey(sku)
			if idx.bySKU[key] == nil {
				idx.bySKU[key] = make(map[string]struct{})
			}
			idx.bySKU[key][sub.SubscriptionID] = struct{}{}
		}
	default:
		idx.fallback[sub.SubscriptionID] = struct{}{}
	}
}

// Remove deletes a subscription from the index.
func (idx *Index) Remove(subscriptionID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(subscriptionID)
	delete(idx.byID, subscriptionID)
}

func (idx *Index) removeLocked(subscriptionID string) {
	for _, set := range idx.byBrand {
		delete(set, subscriptionID)
	}
	for _, set := range idx.bySKU {
		delete(set, subscriptionID)
	}
	delete(idx.fallback, subscriptionID)
}

// Match returns every subscription that matches the given canonical
// release, applying the AND-combined filter semantics of spec.md §4.7.
func (idx *Index) Match(release schema.CanonicalRelease) []Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidates := make(map[string]struct{})
	if brand := normalizeKey(release.Brand); brand != "" {
		for id := range idx.byBrand[brand] {
			candidates[id] = struct{}{}
		}
	}
	if sku := normalizeKey(release.SKU); sku != "" {
		for id := range idx.bySKU[sku] {
			candidates[id] = struct{}{}
		}
	}
	for id := range idx.fallback {
		candidates[id] = struct{}{}
	}

	matches := make([]Match, 0, len(candidates))
	for id := range candidates {
		sub, ok := idx.byID[id]
		if !ok {
			continue
		}
		if matchesFilters(sub, release) {
			matches = append(matches, Match{UserID: sub.UserID, SubscriptionID: sub.SubscriptionID, Subscription: sub})
		}
	}
	return matches
}

// matchesFilters applies every non-empty filter on sub as an AND, per
// spec.md §4.7's per-field semantics.
func matchesFilters(sub schema.UserSubscription, release schema.CanonicalRelease) bool {
	if sub.HasBrandFilter() && !setContains(sub.BrandFilter, release.Brand) {
		return false
	}
	if sub.HasSKUFilter() && !setContains(sub.SKUFilter, release.SKU) {
		return false
	}
	if len(sub.RegionFilter) > 0 {
		if release.Region == "" {
			return false
		}
		if !setContains(sub.RegionFilter, release.Region) {
			return false
		}
	}
	if len(sub.SizeFilter) > 0 {
		if release.StockSummary == nil || !release.StockSummary.AnyAvailable(sub.SizeFilter) {
			return false
		}
	}
	return true
}

// setContains reports membership case-insensitively: filter sets are
// populated with user-supplied casing, release fields with retailer
// casing, and spec.md §4.7 defines these as plain membership matches.
func setContains(set map[string]struct{}, value string) bool {
	if len(set) == 0 || value == "" {
		return false
	}
	target := normalizeKey(value)
	for v := range set {
		if normalizeKey(v) == target {
			return true
		}
	}
	return false
}

func normalizeKey(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
