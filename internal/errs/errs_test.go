package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKindSentinel(t *testing.T) {
	err := New(KindBusy, "host is busy with %s", "insert_paragraph")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected errors.Is(err, ErrBusy) to hold")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("expected Busy not to match Timeout")
	}

	wrapped := fmt.Errorf("invoke: %w", err)
	if !errors.Is(wrapped, ErrBusy) {
		t.Errorf("expected wrapped Busy to match sentinel")
	}
}

func TestRetryableByKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindBusy, true},
		{KindTimeout, true},
		{KindHostUnavailable, true},
		{KindOrphanedLocator, false},
		{KindHeadingNotFound, false},
		{KindIndexOutOfRange, false},
		{KindPageNotFound, false},
		{KindOperationFailed, false},
	}
	for _, tt := range tests {
		err := New(tt.kind, "x")
		if err.Retryable != tt.want {
			t.Errorf("kind %s: expected retryable=%v, got %v", tt.kind, tt.want, err.Retryable)
		}
		if IsRetryable(fmt.Errorf("ctx: %w", err)) != tt.want {
			t.Errorf("kind %s: IsRetryable through wrap mismatch", tt.kind)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("document closed")
	err := Wrap(KindHostUnavailable, cause, "list paragraphs")
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be reachable")
	}
	if err.Error() != "list paragraphs: document closed" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindOperationFailed {
		t.Errorf("expected %s, got %s", KindOperationFailed, got)
	}
	if IsRetryable(errors.New("boom")) {
		t.Errorf("expected unclassified error not to be retryable")
	}
}
