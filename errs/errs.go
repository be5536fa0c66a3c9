// Package errs provides structured error types shared across the ingestion
// and fanout pipeline.
package errs

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the error categories the pipeline propagates.
type Kind string

const (
	// KindFetchTransient covers network, timeout, 5xx, and other unexpected
	// non-2xx fetch outcomes that the scheduler retries via backoff.
	KindFetchTransient Kind = "fetch_transient"
	// KindFetchPermanent covers 4xx (other than 429) and DNS failures that
	// quarantine a target.
	KindFetchPermanent Kind = "fetch_permanent"
	// KindParseError covers structural mismatches in parser input.
	KindParseError Kind = "parse_error"
	// KindCanonicalizerContention covers bounded storage write contention.
	KindCanonicalizerContention Kind = "canonicalizer_contention"
	// KindQuarantine covers records diverted to the quarantine store.
	KindQuarantine Kind = "quarantine"
	// KindDeliveryTransient covers retried delivery failures.
	KindDeliveryTransient Kind = "delivery_transient"
	// KindDeliveryPermanent covers delivery failures dead-lettered immediately.
	KindDeliveryPermanent Kind = "delivery_permanent"
	// KindRateLimitExceeded marks a fetch answered with HTTP 429; RetryAfter
	// carries the response's Retry-After delay for the scheduler.
	KindRateLimitExceeded Kind = "rate_limit_exceeded"
)

// Code refines a Kind with a storage/transport-level reason.
type Code string

const (
	CodeNotFound  Code = "not_found"
	CodeConflict  Code = "conflict"
	CodeInvalid   Code = "invalid"
	CodeTimeout   Code = "timeout"
	CodeNetwork   Code = "network"
	CodeUnknown   Code = "unknown"
)

// E is the structured error envelope produced across the pipeline.
type E struct {
	Source     string
	Kind       Kind
	Code       Code
	HTTP       int
	Message    string
	Metadata   map[string]string
	RetryAfter time.Duration

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope naming the source (a target_id, user_id,
// or subsystem) and the error kind.
func New(source string, kind Kind, opts ...Option) *E {
	e := &E{
		Source: strings.TrimSpace(source),
		Kind:   kind,
		Code:   CodeUnknown,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(msg string) Option {
	trimmed := strings.TrimSpace(msg)
	return func(e *E) { e.Message = trimmed }
}

// WithCode sets the refining storage/transport code.
func WithCode(code Code) Option {
	return func(e *E) { e.Code = code }
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) { e.HTTP = status }
}

// WithRetryAfter records a server-supplied minimum delay before the next
// attempt, as surfaced by a 429 response's Retry-After header.
func WithRetryAfter(d time.Duration) Option {
	return func(e *E) { e.RetryAfter = d }
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) { e.cause = err }
}

// WithMetadata merges the provided metadata into the envelope.
func WithMetadata(meta map[string]string) Option {
	return func(e *E) {
		if len(meta) == 0 {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, len(meta))
		}
		for k, v := range meta {
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			e.Metadata[key] = strings.TrimSpace(v)
		}
	}
}

// WithField appends a single metadata key/value pair.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string, 1)
		}
		e.Metadata[trimmed] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	source := strings.TrimSpace(e.Source)
	if source == "" {
		source = "unknown"
	}
	parts = append(parts, "source="+source)
	parts = append(parts, "kind="+string(e.Kind))

	if e.Code != "" && e.Code != CodeUnknown {
		parts = append(parts, "code="+string(e.Code))
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Metadata[k]))
		}
		parts = append(parts, "meta="+strings.Join(pairs, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

// Unwrap returns the wrapped cause, if any.
func (e *E) Unwrap() error { return e.cause }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*E)
	if !ok || e == nil {
		return false
	}
	return e.Kind == kind
}

// HasCode reports whether err carries the given Code.
func HasCode(err error, code Code) bool {
	e, ok := err.(*E)
	if !ok || e == nil {
		return false
	}
	return e.Code == code
}
