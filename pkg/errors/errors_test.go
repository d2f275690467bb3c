package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "broker unreachable")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Error() != "DEPENDENCY_ERROR: broker unreachable" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAsThroughChain(t *testing.T) {
	inner := New(CodeValidation, "missing user id")
	outer := fmt.Errorf("handling response: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatalf("expected coded error through fmt wrapping")
	}
	if typed.Code() != CodeValidation {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if got := CodeOf(stdErrors.New("plain")); got != CodeInternal {
		t.Fatalf("unexpected code %s", got)
	}
	if got := CodeOf(New(CodeConflict, "dup")); got != CodeConflict {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestRetryable(t *testing.T) {
	if CodeValidation.Retryable() {
		t.Fatalf("validation errors must not be retryable")
	}
	if !CodeDependency.Retryable() {
		t.Fatalf("dependency errors must be retryable")
	}
}
