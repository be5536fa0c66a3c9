package schema

import "time"

// DeliveryStatus is the lifecycle state of a DeliveryTask.
type DeliveryStatus string

const (
	DeliveryPending       DeliveryStatus = "PENDING"
	DeliveryInFlight      DeliveryStatus = "IN_FLIGHT"
	DeliverySent          DeliveryStatus = "SENT"
	DeliveryFailed        DeliveryStatus = "FAILED"
	DeliveryDeadLettered  DeliveryStatus = "DEAD_LETTERED"
)

// DeliveryTask is an in-flight per-user dispatch. Ownership transitions
// from the Fanout Queue to a single Delivery Worker under a lease.
type DeliveryTask struct {
	TaskID         string
	UserID         string
	SubscriptionID string
	EventID        string
	Channel        Channel
	Status         DeliveryStatus
	Attempts       int
	LastAttemptAt  time.Time
	NextAttemptAt  time.Time
	Payload        WebhookPayload
	LeaseOwner     string
	LeaseExpiresAt time.Time
}

// WebhookPayload is the outbound wire contract shared by discord, slack,
// and custom-webhook channels (spec.md §6). Field order is irrelevant;
// goccy/go-json serializes by struct tag, not map order.
type WebhookPayload struct {
	EventID       string  `json:"event_id"`
	ReleaseID     string  `json:"release_id"`
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	StatusFrom    string  `json:"status_from,omitempty"`
	StatusTo      string  `json:"status_to,omitempty"`
	PriceFrom     *string `json:"price_from,omitempty"`
	PriceTo       *string `json:"price_to,omitempty"`
	URL           string  `json:"url,omitempty"`
	Region        string  `json:"region,omitempty"`
	PriorityScore float64 `json:"priority_score"`
	DetectedAt    int64   `json:"detected_at"`
}

// DeadLetter captures a terminal, unprocessable delivery or rate-limited
// event retained for user-facing triage (spec.md §7).
type DeadLetter struct {
	ID              string
	OriginalEventID string
	UserID          string
	Payload         WebhookPayload
	Reason          string
	CreatedAt       time.Time
}

// QuarantineRecord captures a RawRelease diverted away from
// canonicalization, with the raw payload preserved for later triage.
type QuarantineRecord struct {
	ID        string
	Target    string
	Reason    string
	RawTitle  string
	RawSKU    string
	RawBrand  string
	CreatedAt time.Time
}
