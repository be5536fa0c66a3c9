package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesCodeAndMetadata(t *testing.T) {
	err := New(
		"target-nike-001",
		KindFetchTransient,
		WithHTTP(503),
		WithMessage("upstream returned server error"),
		WithCode(CodeNetwork),
		WithField("attempt", "2"),
	)

	msg := err.Error()
	for _, want := range []string{"source=target-nike-001", "kind=fetch_transient", "code=network", "http=503", "attempt"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error message to contain %q, got %q", want, msg)
		}
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("boom")
	err := New("t1", KindParseError, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New("t1", KindRateLimitExceeded)
	if !Is(err, KindRateLimitExceeded) {
		t.Fatalf("expected Is to match KindRateLimitExceeded")
	}
	if Is(err, KindDeliveryPermanent) {
		t.Fatalf("expected Is to reject mismatched kind")
	}
	if Is(errors.New("plain"), KindParseError) {
		t.Fatalf("expected Is to reject non-*E errors")
	}
}

func TestNilReceiverError(t *testing.T) {
	var e *E
	if e.Error() != "<nil>" {
		t.Fatalf("expected nil receiver to format as <nil>, got %q", e.Error())
	}
}
