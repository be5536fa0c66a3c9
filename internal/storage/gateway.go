// Package storage defines the StorageGateway contract spec.md §6 names:
// a single logical adapter over canonical releases, events, snapshots,
// subscriptions, scraper health, delivery tasks, dead letters, and rate
// counters. Two implementations are provided: memstore (in-process,
// used by unit tests and dry-run deployments) and pgstore (jackc/pgx/v5
// against Postgres, with the migrations that create its schema under
// db/migrations).
package storage

import (
	"context"
	"time"

	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/schema"
)

// Gateway is the storage contract every pipeline stage writes through.
// It embeds canon.Store so the Canonicalizer's row-scoped CAS discipline
// (spec.md §4.3's "read the existing canonical row under a row-scoped
// write lock") is part of the same adapter spec.md §6 calls
// upsert_canonical, rather than a second, looser write path.
// Implementations must support per-row locking for canonical releases
// and delivery-task leases, and atomic counters for RateCounter.
type Gateway interface {
	canon.Store

	// AppendEvent writes an immutable ReleaseEvent row.
	AppendEvent(ctx context.Context, event schema.ReleaseEvent) error

	// AppendStockSnapshot writes a StockSnapshot row unless it is
	// semantically equal to the most recent prior snapshot for the same
	// release (spec.md §3), in which case it is silently elided and ok
	// reports false.
	AppendStockSnapshot(ctx context.Context, snap schema.StockSnapshot) (ok bool, err error)

	// LoadSubscriptionsByBrandOrSKU returns every subscription whose
	// brand_filter or sku_filter could match brand/sku, plus every
	// subscription with neither filter set (the full-scan fallback set).
	LoadSubscriptionsByBrandOrSKU(ctx context.Context, brand, sku string) ([]schema.UserSubscription, error)

	// UpdateHealth persists a ScraperHealth row.
	UpdateHealth(ctx context.Context, health schema.ScraperHealth) error

	// LeaseTask atomically transitions a PENDING (or lease-expired)
	// DeliveryTask for channelKind to IN_FLIGHT under leaseOwner, valid
	// until leaseExpiresAt. Returns (nil, nil) when no task is available.
	LeaseTask(ctx context.Context, channelKind schema.ChannelKind, leaseOwner string, leaseExpiresAt time.Time) (*schema.DeliveryTask, error)

	// CompleteTask finalizes a leased task with a terminal or
	// retry-pending status, updating attempt bookkeeping.
	CompleteTask(ctx context.Context, taskID string, status schema.DeliveryStatus, nextAttemptAt time.Time) error

	// DeadLetter writes a terminal dead-letter row (spec.md §7: delivery
	// permanent failures and rate_limited events).
	DeadLetter(ctx context.Context, dl schema.DeadLetter) error

	// Quarantine writes a quarantine row for a RawRelease diverted from
	// canonicalization (spec.md §4.3).
	Quarantine(ctx context.Context, rec schema.QuarantineRecord) error

	// IncrementRate atomically increments the RateCounter for
	// (userID, HourBucket(at)) and returns the new count. Called only on
	// successful delivery (spec.md §4.10, §8 invariant 4).
	IncrementRate(ctx context.Context, userID string, at time.Time) (int64, error)

	// RateCount reads the current RateCounter for (userID, HourBucket(at))
	// without incrementing it.
	RateCount(ctx context.Context, userID string, at time.Time) (int64, error)

	// EnqueueTask creates a new PENDING DeliveryTask (spec.md §4.9).
	EnqueueTask(ctx context.Context, task schema.DeliveryTask) error
}

// QuarantineAdapter narrows a Gateway to canon.Quarantine's single-method
// shape, since the Canonicalizer depends only on Put.
type QuarantineAdapter struct {
	Gateway Gateway
}

// Put implements canon.Quarantine.
func (a QuarantineAdapter) Put(ctx context.Context, rec schema.QuarantineRecord) error {
	return a.Gateway.Quarantine(ctx, rec)
}
