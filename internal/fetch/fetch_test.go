package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/solewatch/releasecore/errs"
	"github.com/solewatch/releasecore/internal/schema"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"releases":[]}`))
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	res, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if len(res.Body) == 0 {
		t.Fatal("expected non-empty body")
	}
}

func TestFetchClassifiesServerErrorAsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	_, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	if !errs.Is(err, errs.KindFetchTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestFetchClassifiesNotFoundAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	_, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	if !errs.Is(err, errs.KindFetchPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestFetchClassifiesTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	_, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	if !errs.Is(err, errs.KindRateLimitExceeded) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestFetchSurfacesRetryAfterOnTooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	_, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	envelope, ok := err.(*errs.E)
	if !ok {
		t.Fatalf("expected *errs.E, got %T", err)
	}
	if envelope.RetryAfter != 30*time.Second {
		t.Fatalf("expected retry_after of 30s, got %v", envelope.RetryAfter)
	}
}

func TestFetchRetryAfterAbsentIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cl := NewClient(WithTargetRate(rate.Inf, 1), WithPoolRate(rate.Inf, 1))
	_, err := cl.Fetch(context.Background(), schema.Target{TargetID: "t1", URLTemplate: srv.URL})
	envelope, ok := err.(*errs.E)
	if !ok {
		t.Fatalf("expected *errs.E, got %T", err)
	}
	if envelope.RetryAfter != 0 {
		t.Fatalf("expected zero retry_after when header absent, got %v", envelope.RetryAfter)
	}
}

func TestRetryCalculatorIncreasesDelay(t *testing.T) {
	rc := NewRetryCalculator(100*time.Millisecond, time.Second)
	first := rc.NextDelay()
	second := rc.NextDelay()
	if second < first {
		t.Fatalf("expected non-decreasing backoff, got %v then %v", first, second)
	}
}
