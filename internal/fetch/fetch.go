// Package fetch retrieves raw target payloads over HTTP, bounding
// outbound request rate per target and per proxy pool and classifying
// failures so the scheduler can decide whether to retry or quarantine.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

// Result is a successfully retrieved target payload.
type Result struct {
	TargetID   string
	Body       []byte
	FetchedAt  time.Time
	StatusCode int
}

// Client fetches target payloads over HTTP, applying a per-target and
// per-proxy-pool token bucket so a single misbehaving target cannot
// starve the rest of its pool.
type Client struct {
	http *http.Client
	now  func() time.Time

	mu          sync.Mutex
	targetLims  map[string]*rate.Limiter
	poolLims    map[string]*rate.Limiter
	targetRate  rate.Limit
	targetBurst int
	poolRate    rate.Limit
	poolBurst   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithClock overrides the clock used to stamp FetchedAt (for tests).
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// WithTargetRate sets the per-target-id token bucket (requests/sec, burst).
func WithTargetRate(r rate.Limit, burst int) Option {
	return func(cl *Client) { cl.targetRate, cl.targetBurst = r, burst }
}

// WithPoolRate sets the per-proxy-pool token bucket (requests/sec, burst).
func WithPoolRate(r rate.Limit, burst int) Option {
	return func(cl *Client) { cl.poolRate, cl.poolBurst = r, burst }
}

// NewClient builds a fetch Client with sane defaults: one request per
// second per target, four per second per proxy pool.
func NewClient(opts ...Option) *Client {
	cl := &Client{
		http:        &http.Client{Timeout: 15 * time.Second},
		now:         time.Now,
		targetLims:  make(map[string]*rate.Limiter),
		poolLims:    make(map[string]*rate.Limiter),
		targetRate:  rate.Limit(1),
		targetBurst: 2,
		poolRate:    rate.Limit(4),
		poolBurst:   8,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

func (c *Client) limiterFor(m map[string]*rate.Limiter, key string, r rate.Limit, burst int) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := m[key]
	if !ok {
		lim = rate.NewLimiter(r, burst)
		m[key] = lim
	}
	return lim
}

// Fetch retrieves the target's URL, blocking on both the target's and
// the proxy pool's rate limiter until the context is done or a token is
// available. Errors are classified into errs.KindFetchTransient,
// errs.KindFetchPermanent, or errs.KindRateLimitExceeded (HTTP 429, with
// any Retry-After delay) so the scheduler can decide retry policy.
func (c *Client) Fetch(ctx context.Context, target schema.Target) (Result, error) {
	targetLim := c.limiterFor(c.targetLims, target.TargetID, c.targetRate, c.targetBurst)
	if err := targetLim.Wait(ctx); err != nil {
		return Result{}, errs.New("fetch", errs.KindFetchTransient, errs.WithCause(err),
			errs.WithMessage("target rate limiter wait"), errs.WithField("target_id", target.TargetID))
	}

	if target.ProxyPoolID != "" {
		poolLim := c.limiterFor(c.poolLims, target.ProxyPoolID, c.poolRate, c.poolBurst)
		if err := poolLim.Wait(ctx); err != nil {
			return Result{}, errs.New("fetch", errs.KindFetchTransient, errs.WithCause(err),
				errs.WithMessage("proxy pool rate limiter wait"), errs.WithField("proxy_pool_id", target.ProxyPoolID))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URLTemplate, nil)
	if err != nil {
		return Result{}, errs.New("fetch", errs.KindFetchPermanent, errs.WithCause(err),
			errs.WithMessage("build request"), errs.WithField("target_id", target.TargetID))
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "releasecore-ingestd/1.0")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Result{}, errs.New("fetch", errs.KindFetchPermanent, errs.WithCause(err),
				errs.WithMessage("dns lookup"), errs.WithCode(errs.CodeNetwork),
				errs.WithField("target_id", target.TargetID))
		}
		return Result{}, errs.New("fetch", errs.KindFetchTransient, errs.WithCause(err),
			errs.WithMessage("http request"), errs.WithCode(errs.CodeNetwork),
			errs.WithField("target_id", target.TargetID))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Result{}, errs.New("fetch", errs.KindFetchTransient, errs.WithCause(err),
			errs.WithMessage("read body"), errs.WithField("target_id", target.TargetID))
	}

	fetchedAt := c.now().UTC()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, errs.New("fetch", errs.KindRateLimitExceeded,
			errs.WithHTTP(resp.StatusCode), errs.WithField("target_id", target.TargetID),
			errs.WithRetryAfter(retryAfter(resp.Header.Get("Retry-After"))))
	case resp.StatusCode >= 500:
		return Result{}, errs.New("fetch", errs.KindFetchTransient,
			errs.WithHTTP(resp.StatusCode), errs.WithMessage(fmt.Sprintf("server error %d", resp.StatusCode)),
			errs.WithField("target_id", target.TargetID))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return Result{}, errs.New("fetch", errs.KindFetchPermanent,
			errs.WithHTTP(resp.StatusCode), errs.WithMessage(fmt.Sprintf("non-retryable status %d", resp.StatusCode)),
			errs.WithField("target_id", target.TargetID))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Result{}, errs.New("fetch", errs.KindFetchTransient,
			errs.WithHTTP(resp.StatusCode), errs.WithMessage(fmt.Sprintf("unexpected status %d", resp.StatusCode)),
			errs.WithField("target_id", target.TargetID))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return Result{}, errs.New("fetch", errs.KindFetchTransient,
			errs.WithMessage("empty body"), errs.WithField("target_id", target.TargetID))
	}

	return Result{
		TargetID:   target.TargetID,
		Body:       body,
		FetchedAt:  fetchedAt,
		StatusCode: resp.StatusCode,
	}, nil
}

// retryAfter parses an HTTP Retry-After header, supporting both the
// delta-seconds and HTTP-date forms (mirrors internal/delivery's webhook
// transport, which honors the same header).
func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}
