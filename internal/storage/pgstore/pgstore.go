// Package pgstore is the Postgres-backed storage.Gateway, written as raw
// SQL with pgx named arguments. Canonical-release locking relies on row versioning
// rather than a MemoryStore mutex; delivery-task leasing relies on
// SELECT ... FOR UPDATE SKIP LOCKED.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/canon"
	"github.com/solewatch/releasecore/internal/ratecounter"
	"github.com/solewatch/releasecore/internal/schema"
	"github.com/solewatch/releasecore/internal/storage"
)

// Store is a Postgres-backed storage.Gateway.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store backed by pool. ObservePoolMetrics should be
// called once on the same pool to register its connection gauges.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) ensurePool() (*pgxpool.Pool, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("pgstore: nil pool")
	}
	return s.pool, nil
}

const (
	canonicalSelectSQL = `
SELECT release_id, sku, brand, name, status, price::text, currency, release_date,
       region, source, first_seen_at, updated_at, stock_summary, payload_hash, version
FROM canonical_releases
WHERE release_id = @release_id;
`

	canonicalInsertSQL = `
INSERT INTO canonical_releases (
    release_id, sku, brand, name, status, price, currency, release_date,
    region, source, first_seen_at, updated_at, stock_summary, payload_hash, version
) VALUES (
    @release_id, @sku, @brand, @name, @status, @price, @currency, @release_date,
    @region, @source, @first_seen_at, @updated_at, @stock_summary::jsonb, @payload_hash, 1
)
ON CONFLICT (release_id) DO NOTHING;
`

	canonicalUpdateSQL = `
UPDATE canonical_releases
SET sku = @sku, brand = @brand, name = @name, status = @status, price = @price,
    currency = @currency, release_date = @release_date, region = @region,
    source = @source, updated_at = @updated_at, stock_summary = @stock_summary::jsonb,
    payload_hash = @payload_hash, version = version + 1
WHERE release_id = @release_id AND version = @prev_version
RETURNING version;
`
)

// Get implements canon.Store.
func (s *Store) Get(ctx context.Context, releaseID string) (canon.Row, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return canon.Row{}, err
	}
	row := pool.QueryRow(ctx, canonicalSelectSQL, pgx.NamedArgs{"release_id": releaseID})
	release, version, err := scanCanonicalRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return canon.Row{}, errs.New("pgstore", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeNotFound),
				errs.WithMessage("canonical row not found"), errs.WithField("release_id", releaseID))
		}
		return canon.Row{}, fmt.Errorf("pgstore: get canonical release: %w", err)
	}
	return canon.Row{Release: release, Version: version}, nil
}

// Insert implements canon.Store.
func (s *Store) Insert(ctx context.Context, release schema.CanonicalRelease) (canon.Row, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return canon.Row{}, err
	}
	args, err := canonicalArgs(release)
	if err != nil {
		return canon.Row{}, fmt.Errorf("pgstore: encode canonical release: %w", err)
	}
	tag, err := pool.Exec(ctx, canonicalInsertSQL, args)
	if err != nil {
		return canon.Row{}, fmt.Errorf("pgstore: insert canonical release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return canon.Row{}, errs.New("pgstore", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeConflict),
			errs.WithMessage("row already exists"), errs.WithField("release_id", release.ReleaseID))
	}
	return canon.Row{Release: release.Clone(), Version: 1}, nil
}

// CompareAndSwap implements canon.Store.
func (s *Store) CompareAndSwap(ctx context.Context, releaseID string, prevVersion uint64, release schema.CanonicalRelease) (canon.Row, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return canon.Row{}, err
	}
	args, err := canonicalArgs(release)
	if err != nil {
		return canon.Row{}, fmt.Errorf("pgstore: encode canonical release: %w", err)
	}
	args["prev_version"] = int64(prevVersion)

	var newVersion int64
	err = pool.QueryRow(ctx, canonicalUpdateSQL, args).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.Get(ctx, releaseID); getErr != nil {
				return canon.Row{}, getErr
			}
			return canon.Row{}, errs.New("pgstore", errs.KindCanonicalizerContention, errs.WithCode(errs.CodeConflict),
				errs.WithMessage("version mismatch"), errs.WithField("release_id", releaseID))
		}
		return canon.Row{}, fmt.Errorf("pgstore: compare-and-swap canonical release: %w", err)
	}
	return canon.Row{Release: release.Clone(), Version: uint64(newVersion)}, nil
}

func canonicalArgs(release schema.CanonicalRelease) (pgx.NamedArgs, error) {
	stockJSON, err := json.Marshal(release.StockSummary)
	if err != nil {
		return nil, err
	}
	return pgx.NamedArgs{
		"release_id":    release.ReleaseID,
		"sku":           release.SKU,
		"brand":         release.Brand,
		"name":          release.Name,
		"status":        string(release.Status),
		"price":         priceArg(release.Price),
		"currency":      release.Currency,
		"release_date":  release.ReleaseDate,
		"region":        release.Region,
		"source":        release.Source,
		"first_seen_at": release.FirstSeenAt,
		"updated_at":    release.UpdatedAt,
		"stock_summary": string(stockJSON),
		"payload_hash":  release.PayloadHash,
	}, nil
}

func scanCanonicalRow(row pgx.Row) (schema.CanonicalRelease, uint64, error) {
	var (
		release     schema.CanonicalRelease
		status      string
		priceText   *string
		stockJSON   []byte
		version     int64
	)
	if err := row.Scan(
		&release.ReleaseID, &release.SKU, &release.Brand, &release.Name, &status, &priceText,
		&release.Currency, &release.ReleaseDate, &release.Region, &release.Source,
		&release.FirstSeenAt, &release.UpdatedAt, &stockJSON, &release.PayloadHash, &version,
	); err != nil {
		return schema.CanonicalRelease{}, 0, err
	}
	release.Status = schema.ReleaseStatus(status)
	price, err := priceFromText(priceText)
	if err != nil {
		return schema.CanonicalRelease{}, 0, fmt.Errorf("parse price: %w", err)
	}
	release.Price = price
	if len(stockJSON) > 0 {
		var summary schema.StockSummary
		if err := json.Unmarshal(stockJSON, &summary); err != nil {
			return schema.CanonicalRelease{}, 0, fmt.Errorf("decode stock_summary: %w", err)
		}
		release.StockSummary = summary
	}
	return release, uint64(version), nil
}

func priceArg(price *decimal.Decimal) *string {
	if price == nil {
		return nil
	}
	text := price.String()
	return &text
}

func priceFromText(text *string) (*decimal.Decimal, error) {
	if text == nil || strings.TrimSpace(*text) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(*text))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const eventInsertSQL = `
INSERT INTO release_events (
    event_id, release_id, source, status_from, status_to, price_from, price_to,
    detected_at, ingestion_started, ingestion_completed, latency_ms, aggregator_hits,
    social_mentions, restock_likelihood, priority_score
) VALUES (
    @event_id, @release_id, @source, @status_from, @status_to, @price_from, @price_to,
    @detected_at, @ingestion_started, @ingestion_completed, @latency_ms, @aggregator_hits,
    @social_mentions, @restock_likelihood, @priority_score
)
ON CONFLICT (event_id) DO NOTHING;
`

// AppendEvent implements storage.Gateway.
func (s *Store) AppendEvent(ctx context.Context, event schema.ReleaseEvent) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"event_id":             event.EventID,
		"release_id":           event.ReleaseID,
		"source":               event.Source,
		"status_from":          statusTextPtr(event.StatusFrom),
		"status_to":            statusTextPtr(event.StatusTo),
		"price_from":           priceArg(event.PriceFrom),
		"price_to":             priceArg(event.PriceTo),
		"detected_at":          event.DetectedAt,
		"ingestion_started":    event.IngestionStarted,
		"ingestion_completed":  event.IngestionCompleted,
		"latency_ms":           event.LatencyMS,
		"aggregator_hits":      event.AggregatorHits,
		"social_mentions":      event.SocialMentions,
		"restock_likelihood":   event.RestockLikelihood,
		"priority_score":       event.PriorityScore,
	}
	if _, err := pool.Exec(ctx, eventInsertSQL, args); err != nil {
		return fmt.Errorf("pgstore: append event: %w", err)
	}
	return nil
}

func statusTextPtr(status *schema.ReleaseStatus) *string {
	if status == nil {
		return nil
	}
	text := string(*status)
	return &text
}

const (
	latestSnapshotSQL = `
SELECT sizes FROM stock_snapshots
WHERE release_id = @release_id
ORDER BY observed_at DESC
LIMIT 1;
`
	snapshotInsertSQL = `
INSERT INTO stock_snapshots (release_id, observed_at, sizes)
VALUES (@release_id, @observed_at, @sizes::jsonb)
ON CONFLICT (release_id, observed_at) DO NOTHING;
`
)

// AppendStockSnapshot implements storage.Gateway. The read-then-write
// elision check is not transactionally isolated from a concurrent writer
// for the same release_id; the scheduler's in-flight gating (spec.md
// §4.5) ensures only one fetch pipeline is active per target at a time,
// so no two snapshots for the same release are ever appended concurrently.
func (s *Store) AppendStockSnapshot(ctx context.Context, snap schema.StockSnapshot) (bool, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return false, err
	}

	var priorJSON []byte
	err = pool.QueryRow(ctx, latestSnapshotSQL, pgx.NamedArgs{"release_id": snap.ReleaseID}).Scan(&priorJSON)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("pgstore: load latest snapshot: %w", err)
	}
	if err == nil {
		var prior schema.StockSummary
		if uerr := json.Unmarshal(priorJSON, &prior); uerr == nil && prior.Equal(snap.Sizes) {
			return false, nil
		}
	}

	sizesJSON, err := json.Marshal(snap.Sizes)
	if err != nil {
		return false, fmt.Errorf("pgstore: encode sizes: %w", err)
	}
	tag, err := pool.Exec(ctx, snapshotInsertSQL, pgx.NamedArgs{
		"release_id":  snap.ReleaseID,
		"observed_at": snap.ObservedAt,
		"sizes":       string(sizesJSON),
	})
	if err != nil {
		return false, fmt.Errorf("pgstore: insert snapshot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const subscriptionSelectSQL = `
SELECT subscription_id, user_id, brand_filter, sku_filter, region_filter, size_filter,
       max_events_per_hour, channels
FROM user_subscriptions
WHERE (array_length(brand_filter, 1) IS NULL AND array_length(sku_filter, 1) IS NULL)
   OR @brand = ANY(brand_filter)
   OR @sku = ANY(sku_filter);
`

// LoadSubscriptionsByBrandOrSKU implements storage.Gateway.
func (s *Store) LoadSubscriptionsByBrandOrSKU(ctx context.Context, brand, sku string) ([]schema.UserSubscription, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, subscriptionSelectSQL, pgx.NamedArgs{"brand": brand, "sku": sku})
	if err != nil {
		return nil, fmt.Errorf("pgstore: load subscriptions: %w", err)
	}
	defer rows.Close()

	var out []schema.UserSubscription
	for rows.Next() {
		var (
			sub          schema.UserSubscription
			brandFilter  []string
			skuFilter    []string
			regionFilter []string
			channelsJSON []byte
		)
		if err := rows.Scan(&sub.SubscriptionID, &sub.UserID, &brandFilter, &skuFilter, &regionFilter,
			&sub.SizeFilter, &sub.MaxEventsPerHour, &channelsJSON); err != nil {
			return nil, fmt.Errorf("pgstore: scan subscription: %w", err)
		}
		sub.BrandFilter = toSet(brandFilter)
		sub.SKUFilter = toSet(skuFilter)
		sub.RegionFilter = toSet(regionFilter)
		if len(channelsJSON) > 0 {
			if err := json.Unmarshal(channelsJSON, &sub.Channels); err != nil {
				return nil, fmt.Errorf("pgstore: decode channels: %w", err)
			}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

const healthUpsertSQL = `
INSERT INTO scraper_health (target_id, last_success_at, consecutive_failures, breaker_state, breaker_opened_at, proxy_pool)
VALUES (@target_id, @last_success_at, @consecutive_failures, @breaker_state, @breaker_opened_at, @proxy_pool)
ON CONFLICT (target_id) DO UPDATE SET
    last_success_at = EXCLUDED.last_success_at,
    consecutive_failures = EXCLUDED.consecutive_failures,
    breaker_state = EXCLUDED.breaker_state,
    breaker_opened_at = EXCLUDED.breaker_opened_at,
    proxy_pool = EXCLUDED.proxy_pool;
`

// UpdateHealth implements storage.Gateway.
func (s *Store) UpdateHealth(ctx context.Context, health schema.ScraperHealth) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	args := pgx.NamedArgs{
		"target_id":            health.TargetID,
		"consecutive_failures": health.ConsecutiveFailures,
		"breaker_state":        string(health.BreakerState),
		"proxy_pool":           health.ProxyPool,
	}
	if health.LastSuccessAt.IsZero() {
		args["last_success_at"] = nil
	} else {
		args["last_success_at"] = health.LastSuccessAt
	}
	if health.BreakerOpenedAt.IsZero() {
		args["breaker_opened_at"] = nil
	} else {
		args["breaker_opened_at"] = health.BreakerOpenedAt
	}
	if _, err := pool.Exec(ctx, healthUpsertSQL, args); err != nil {
		return fmt.Errorf("pgstore: update health: %w", err)
	}
	return nil
}

const taskInsertSQL = `
INSERT INTO delivery_tasks (
    task_id, user_id, subscription_id, event_id, channel_kind, channel_address,
    status, attempts, last_attempt_at, next_attempt_at, payload, lease_owner, lease_expires_at
) VALUES (
    @task_id, @user_id, @subscription_id, @event_id, @channel_kind, @channel_address,
    @status, @attempts, @last_attempt_at, @next_attempt_at, @payload::jsonb, @lease_owner, @lease_expires_at
)
ON CONFLICT (task_id) DO NOTHING;
`

// EnqueueTask implements storage.Gateway.
func (s *Store) EnqueueTask(ctx context.Context, task schema.DeliveryTask) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("pgstore: encode payload: %w", err)
	}
	args := pgx.NamedArgs{
		"task_id":          task.TaskID,
		"user_id":          task.UserID,
		"subscription_id":  task.SubscriptionID,
		"event_id":         task.EventID,
		"channel_kind":     string(task.Channel.Kind),
		"channel_address":  task.Channel.Address,
		"status":           string(task.Status),
		"attempts":         task.Attempts,
		"next_attempt_at":  task.NextAttemptAt,
		"payload":          string(payloadJSON),
		"lease_owner":      task.LeaseOwner,
	}
	if task.LastAttemptAt.IsZero() {
		args["last_attempt_at"] = nil
	} else {
		args["last_attempt_at"] = task.LastAttemptAt
	}
	if task.LeaseExpiresAt.IsZero() {
		args["lease_expires_at"] = nil
	} else {
		args["lease_expires_at"] = task.LeaseExpiresAt
	}
	if _, err := pool.Exec(ctx, taskInsertSQL, args); err != nil {
		return fmt.Errorf("pgstore: enqueue task: %w", err)
	}
	return nil
}

const leaseTaskSQL = `
WITH candidate AS (
    SELECT task_id FROM delivery_tasks
    WHERE channel_kind = @channel_kind
      AND (status = 'PENDING' OR (status = 'IN_FLIGHT' AND lease_expires_at < @now))
    ORDER BY next_attempt_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE delivery_tasks t
SET status = 'IN_FLIGHT', lease_owner = @lease_owner, lease_expires_at = @lease_expires_at,
    last_attempt_at = @now, attempts = t.attempts + 1
FROM candidate c
WHERE t.task_id = c.task_id
RETURNING t.task_id, t.user_id, t.subscription_id, t.event_id, t.channel_kind, t.channel_address,
          t.status, t.attempts, t.last_attempt_at, t.next_attempt_at, t.payload, t.lease_owner, t.lease_expires_at;
`

// LeaseTask implements storage.Gateway.
func (s *Store) LeaseTask(ctx context.Context, channelKind schema.ChannelKind, leaseOwner string, leaseExpiresAt time.Time) (*schema.DeliveryTask, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return nil, err
	}
	row := pool.QueryRow(ctx, leaseTaskSQL, pgx.NamedArgs{
		"channel_kind":     string(channelKind),
		"now":              time.Now().UTC(),
		"lease_owner":      leaseOwner,
		"lease_expires_at": leaseExpiresAt,
	})

	var (
		task          schema.DeliveryTask
		channelKindDB string
		status        string
		payloadJSON   []byte
	)
	if err := row.Scan(&task.TaskID, &task.UserID, &task.SubscriptionID, &task.EventID, &channelKindDB,
		&task.Channel.Address, &status, &task.Attempts, &task.LastAttemptAt, &task.NextAttemptAt,
		&payloadJSON, &task.LeaseOwner, &task.LeaseExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pgstore: lease task: %w", err)
	}
	task.Channel.Kind = schema.ChannelKind(channelKindDB)
	task.Status = schema.DeliveryStatus(status)
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &task.Payload); err != nil {
			return nil, fmt.Errorf("pgstore: decode payload: %w", err)
		}
	}
	return &task, nil
}

const completeTaskSQL = `
UPDATE delivery_tasks
SET status = @status,
    next_attempt_at = @next_attempt_at,
    lease_owner = CASE WHEN @status::text <> 'IN_FLIGHT' THEN '' ELSE lease_owner END,
    lease_expires_at = CASE WHEN @status::text <> 'IN_FLIGHT' THEN NULL ELSE lease_expires_at END
WHERE task_id = @task_id;
`

// CompleteTask implements storage.Gateway.
func (s *Store) CompleteTask(ctx context.Context, taskID string, status schema.DeliveryStatus, nextAttemptAt time.Time) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, completeTaskSQL, pgx.NamedArgs{
		"task_id":         taskID,
		"status":          string(status),
		"next_attempt_at": nextAttemptAt,
	})
	if err != nil {
		return fmt.Errorf("pgstore: complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New("pgstore", errs.KindDeliveryPermanent, errs.WithCode(errs.CodeNotFound),
			errs.WithMessage("task not found"), errs.WithField("task_id", taskID))
	}
	return nil
}

const deadLetterInsertSQL = `
INSERT INTO dead_letters (id, original_event_id, user_id, payload, reason, created_at)
VALUES (@id, @original_event_id, @user_id, @payload::jsonb, @reason, @created_at)
ON CONFLICT (id) DO NOTHING;
`

// DeadLetter implements storage.Gateway.
func (s *Store) DeadLetter(ctx context.Context, dl schema.DeadLetter) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if dl.ID == "" {
		dl.ID = uuid.New().String()
	}
	payloadJSON, err := json.Marshal(dl.Payload)
	if err != nil {
		return fmt.Errorf("pgstore: encode dead-letter payload: %w", err)
	}
	if _, err := pool.Exec(ctx, deadLetterInsertSQL, pgx.NamedArgs{
		"id":                dl.ID,
		"original_event_id": dl.OriginalEventID,
		"user_id":           dl.UserID,
		"payload":           string(payloadJSON),
		"reason":            dl.Reason,
		"created_at":        dl.CreatedAt,
	}); err != nil {
		return fmt.Errorf("pgstore: insert dead letter: %w", err)
	}
	return nil
}

const quarantineInsertSQL = `
INSERT INTO quarantine_records (id, target, reason, raw_title, raw_sku, raw_brand, created_at)
VALUES (@id, @target, @reason, @raw_title, @raw_sku, @raw_brand, @created_at)
ON CONFLICT (id) DO NOTHING;
`

// Quarantine implements storage.Gateway.
func (s *Store) Quarantine(ctx context.Context, rec schema.QuarantineRecord) error {
	pool, err := s.ensurePool()
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if _, err := pool.Exec(ctx, quarantineInsertSQL, pgx.NamedArgs{
		"id":         rec.ID,
		"target":     rec.Target,
		"reason":     rec.Reason,
		"raw_title":  rec.RawTitle,
		"raw_sku":    rec.RawSKU,
		"raw_brand":  rec.RawBrand,
		"created_at": rec.CreatedAt,
	}); err != nil {
		return fmt.Errorf("pgstore: insert quarantine record: %w", err)
	}
	return nil
}

const rateIncrementSQL = `
INSERT INTO rate_counters (user_id, hour_bucket, count)
VALUES (@user_id, @hour_bucket, 1)
ON CONFLICT (user_id, hour_bucket) DO UPDATE SET count = rate_counters.count + 1
RETURNING count;
`

const rateSelectSQL = `
SELECT count FROM rate_counters WHERE user_id = @user_id AND hour_bucket = @hour_bucket;
`

// IncrementRate implements storage.Gateway.
func (s *Store) IncrementRate(ctx context.Context, userID string, at time.Time) (int64, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return 0, err
	}
	var count int64
	err = pool.QueryRow(ctx, rateIncrementSQL, pgx.NamedArgs{
		"user_id":     userID,
		"hour_bucket": ratecounter.HourBucket(at),
	}).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pgstore: increment rate: %w", err)
	}
	return count, nil
}

// RateCount implements storage.Gateway.
func (s *Store) RateCount(ctx context.Context, userID string, at time.Time) (int64, error) {
	pool, err := s.ensurePool()
	if err != nil {
		return 0, err
	}
	var count int64
	err = pool.QueryRow(ctx, rateSelectSQL, pgx.NamedArgs{
		"user_id":     userID,
		"hour_bucket": ratecounter.HourBucket(at),
	}).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("pgstore: read rate count: %w", err)
	}
	return count, nil
}

var (
	_ canon.Store      = (*Store)(nil)
	_ storage.Gateway  = (*Store)(nil)
)
