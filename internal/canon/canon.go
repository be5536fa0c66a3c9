// Package canon normalizes RawRelease records into CanonicalRelease
// rows, assigning stable release_id identity and merging updates under
// a row-scoped compare-and-swap discipline.
package canon

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// skuRequiredBrands names brands for which a missing SKU diverts the
// record to quarantine instead of producing a canonical row (spec.md §4.3).
var skuRequiredBrands = map[string]struct{}{
	"nike":   {},
	"jordan": {},
}

// Quarantine receives records that cannot be safely canonicalized.
type Quarantine interface {
	Put(ctx context.Context, rec schema.QuarantineRecord) error
}

// Transition is the pre/post image pair handed to the Change Detector.
type Transition struct {
	Pre  *schema.CanonicalRelease
	Post schema.CanonicalRelease
}

// Canonicalizer applies the normalize-then-merge contract in SPEC §4.3.
type Canonicalizer struct {
	store      Store
	quarantine Quarantine
	now        func() time.Time
	maxRetries int
}

// New builds a Canonicalizer backed by store, diverting rejected
// records to quarantine.
func New(store Store, quarantine Quarantine) *Canonicalizer {
	return &Canonicalizer{store: store, quarantine: quarantine, now: time.Now, maxRetries: 5}
}

// WithClock overrides the clock (for tests).
func (c *Canonicalizer) WithClock(now func() time.Time) *Canonicalizer {
	c.now = now
	return c
}

// Canonicalize applies one raw release and returns the pre/post image
// pair for the Change Detector, or nil when the record was quarantined.
func (c *Canonicalizer) Canonicalize(ctx context.Context, raw schema.RawRelease) (*Transition, error) {
	brand := strings.ToLower(strings.TrimSpace(raw.Brand))
	if _, required := skuRequiredBrands[brand]; required && strings.TrimSpace(raw.SKU) == "" {
		if c.quarantine != nil {
			if err := c.quarantine.Put(ctx, schema.QuarantineRecord{
				Target:    raw.Source,
				Reason:    "missing_sku_nike_jordan",
				RawTitle:  raw.Title,
				RawBrand:  raw.Brand,
				CreatedAt: c.now().UTC(),
			}); err != nil {
				return nil, errs.New("canon", errs.KindQuarantine, errs.WithCause(err),
					errs.WithMessage("write quarantine record"))
			}
		}
		return nil, nil
	}

	releaseID := ReleaseID(raw)
	payloadHash := PayloadHash(raw)

	var transition *Transition
	retryable := func() (*Transition, error) {
		t, err := c.applyOnce(ctx, releaseID, payloadHash, raw)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	op := func() (*Transition, error) {
		return retryable()
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(uint(c.maxRetries)),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		return nil, errs.New("canon", errs.KindCanonicalizerContention, errs.WithCause(err),
			errs.WithMessage("canonicalizer contention exceeded retry budget"),
			errs.WithField("release_id", releaseID))
	}
	transition = result
	return transition, nil
}

func (c *Canonicalizer) applyOnce(ctx context.Context, releaseID, payloadHash string, raw schema.RawRelease) (*Transition, error) {
	existing, err := c.store.Get(ctx, releaseID)
	if err != nil && !errs.Is(err, errs.KindCanonicalizerContention) {
		return nil, err
	}

	now := c.now().UTC()

	if err != nil {
		// No existing row: insert.
		post := buildCanonical(releaseID, raw, payloadHash, now, now)
		row, insertErr := c.store.Insert(ctx, post)
		if insertErr != nil {
			return nil, insertErr
		}
		return &Transition{Pre: nil, Post: row.Release}, nil
	}

	pre := existing.Release.Clone()
	if pre.PayloadHash == payloadHash {
		pre.UpdatedAt = now
		row, casErr := c.store.CompareAndSwap(ctx, releaseID, existing.Version, pre)
		if casErr != nil {
			return nil, casErr
		}
		preImage := existing.Release
		return &Transition{Pre: &preImage, Post: row.Release}, nil
	}

	merged := mergeFields(pre, raw, payloadHash, now)
	row, casErr := c.store.CompareAndSwap(ctx, releaseID, existing.Version, merged)
	if casErr != nil {
		return nil, casErr
	}
	preImage := existing.Release
	return &Transition{Pre: &preImage, Post: row.Release}, nil
}

func buildCanonical(releaseID string, raw schema.RawRelease, payloadHash string, firstSeen, updated time.Time) schema.CanonicalRelease {
	status := schema.ReleaseStatus(strings.ToUpper(strings.TrimSpace(raw.StatusRaw)))
	if status == "" {
		status = schema.StatusUnknown
	}

	cr := schema.CanonicalRelease{
		ReleaseID:   releaseID,
		SKU:         raw.SKU,
		Brand:       raw.Brand,
		Name:        raw.Title,
		Status:      status,
		Price:       raw.Price,
		Currency:    raw.Currency,
		ReleaseDate: raw.ReleaseDate,
		Source:      raw.Source,
		FirstSeenAt: firstSeen,
		UpdatedAt:   updated,
		PayloadHash: payloadHash,
	}
	if len(raw.SizeAvailability) > 0 {
		cr.StockSummary = make(schema.StockSummary, len(raw.SizeAvailability))
		for k, v := range raw.SizeAvailability {
			cr.StockSummary[k] = v
		}
	}
	return cr
}

// mergeFields applies the field-merge policy: non-null new fields
// overwrite stored fields, null new fields are ignored, first_seen_at
// is preserved.
func mergeFields(stored schema.CanonicalRelease, raw schema.RawRelease, payloadHash string, now time.Time) schema.CanonicalRelease {
	merged := stored.Clone()
	merged.UpdatedAt = now
	merged.PayloadHash = payloadHash

	if strings.TrimSpace(raw.SKU) != "" {
		merged.SKU = raw.SKU
	}
	if strings.TrimSpace(raw.Brand) != "" {
		merged.Brand = raw.Brand
	}
	if strings.TrimSpace(raw.Title) != "" {
		merged.Name = raw.Title
	}
	if strings.TrimSpace(raw.StatusRaw) != "" {
		merged.Status = schema.ReleaseStatus(strings.ToUpper(strings.TrimSpace(raw.StatusRaw)))
	}
	if raw.Price != nil {
		p := *raw.Price
		merged.Price = &p
	}
	if strings.TrimSpace(raw.Currency) != "" {
		merged.Currency = raw.Currency
	}
	if raw.ReleaseDate != nil {
		d := *raw.ReleaseDate
		merged.ReleaseDate = &d
	}
	if len(raw.SizeAvailability) > 0 {
		merged.StockSummary = make(schema.StockSummary, len(raw.SizeAvailability))
		for k, v := range raw.SizeAvailability {
			merged.StockSummary[k] = v
		}
	}
	return merged
}
