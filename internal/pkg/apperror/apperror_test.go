package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(CodeSeatsUnavailable, "seats already taken", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to satisfy errors.Is")
	}
	if err.Status() != http.StatusConflict {
		t.Fatalf("expected 409 for seats unavailable, got %d", err.Status())
	}
}

func TestAsThroughWrappedChain(t *testing.T) {
	coded := New(CodeDepositBelowMinimum, "paid amount below required minimum").
		WithDetail("event_id", uint(42))
	wrapped := fmt.Errorf("complete checkout: %w", coded)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected coded error through wrapped chain")
	}
	if typed.Code() != CodeDepositBelowMinimum {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if typed.Details()["event_id"] != uint(42) {
		t.Fatalf("expected event id detail, got %v", typed.Details())
	}
}

func TestCodeOfUncodedError(t *testing.T) {
	if code := CodeOf(errors.New("boom")); code != CodeInternal {
		t.Fatalf("uncoded errors must surface as internal, got %s", code)
	}
	if HTTPStatus(Code("bogus")) != http.StatusInternalServerError {
		t.Fatal("unknown codes must map to 500")
	}
}
