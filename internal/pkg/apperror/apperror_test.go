package apperror

import (
	"context"
	"errors"
	"testing"
)

var errStale = New(ErrConflict, "stale")

func TestKindMatchesSentinelAndKind(t *testing.T) {
	wrapped := Wrapf(errStale, "report %s", "r1")

	if !errors.Is(wrapped, errStale) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if Kind(wrapped) != ErrConflict {
		t.Fatalf("expected conflict kind, got %v", Kind(wrapped))
	}
	if Kind(errors.New("boom")) != nil {
		t.Fatalf("expected nil kind for plain error")
	}
}

func TestRetryOnConflictRetriesExactlyOnce(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return errStale
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict to surface, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryOnConflictSucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	err := RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errStale
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success after retry, got err=%v calls=%d", err, calls)
	}
}

func TestRetryOnConflictDoesNotRetryOtherKinds(t *testing.T) {
	calls := 0
	notFound := New(ErrNotFound, "missing")
	err := RetryOnConflict(context.Background(), func(context.Context) error {
		calls++
		return notFound
	})
	if err != notFound || calls != 1 {
		t.Fatalf("expected single call returning not found, got err=%v calls=%d", err, calls)
	}
}

func TestValidationCarriesFields(t *testing.T) {
	err := Wrapf(Validation(map[string]string{"reason": "required"}), "submit")
	if FieldErrors(err)["reason"] != "required" {
		t.Fatalf("expected field errors to survive wrapping")
	}
}
