// Package parsers turns raw target payloads into RawRelease records.
// Every parser is pure and deterministic: given the same bytes it
// returns the same result, and it performs no I/O of its own.
package parsers

import (
	"fmt"
	"sync"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// Parser converts a raw payload for one target into canonical raw
// releases. source identifies the target's source system (used to
// build release_id).
type Parser func(source string, body []byte) ([]schema.RawRelease, error)

// Registry maps parser_key (and script_key) to a Parser implementation.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry builds a Registry preloaded with the built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register("json-catalog", ParseJSONCatalog)
	r.Register("api-feed", ParseAPIFeed)
	r.Register("html-page", ParseHTMLPage)
	return r
}

// Register installs or replaces a named parser.
func (r *Registry) Register(key string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[key] = p
}

// Parse runs the parser registered under key against body. An unknown
// key surfaces as a KindParseError so the caller can route the batch to
// quarantine rather than crash the scheduler loop.
func (r *Registry) Parse(key, source string, body []byte) ([]schema.RawRelease, error) {
	r.mu.RLock()
	p, ok := r.parsers[key]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New("parsers", errs.KindParseError,
			errs.WithMessage(fmt.Sprintf("unknown parser_key %q", key)))
	}
	releases, err := p(source, body)
	if err != nil {
		return nil, err
	}
	return releases, nil
}
