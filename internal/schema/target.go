// Package schema defines the canonical data model shared across the
// ingestion and fanout pipeline: targets, raw and canonical releases,
// release events, subscriptions, delivery tasks, and scraper health.
package schema

import "time"

// TargetKind identifies the shape of a pollable endpoint.
type TargetKind string

const (
	TargetKindJSONCatalog TargetKind = "json-catalog"
	TargetKindHTMLPage    TargetKind = "html-page"
	TargetKindAPIFeed     TargetKind = "api-feed"
)

// Target is a pollable endpoint owned by one source. Targets are
// configuration; they are created at configuration load time and never
// mutated at runtime by the pipeline itself.
type Target struct {
	TargetID                string
	Source                  string
	Kind                     TargetKind
	URLTemplate              string
	ParserKey                string
	ScriptKey                string
	ExpectedCadenceSeconds   int
	ProxyPoolID              string
	Headers                  map[string]string
}

// CadenceDuration converts ExpectedCadenceSeconds to a time.Duration,
// defaulting to 45s when unset (matches the volatile_poll_interval_ms
// configuration default).
func (t Target) CadenceDuration() time.Duration {
	if t.ExpectedCadenceSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(t.ExpectedCadenceSeconds) * time.Second
}
