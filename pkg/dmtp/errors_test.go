package dmtp

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsSevereUnwraps(t *testing.T) {
	err := fmt.Errorf("session: %w", &SevereError{Reason: "account not found"})
	if !IsSevere(err) {
		t.Fatal("expected IsSevere to see through fmt.Errorf wrapping")
	}
	if IsFatal(err) || IsQueueOverflow(err) {
		t.Fatal("a severe error must not also classify as fatal or queue overflow")
	}
}

func TestIsQueueOverflowMatchesSentinel(t *testing.T) {
	if !IsQueueOverflow(ErrQueueFull) {
		t.Fatal("expected IsQueueOverflow to match the package's own sentinel")
	}
	wrapped := &QueueOverflowError{Err: ErrQueueFull}
	if !IsQueueOverflow(wrapped) {
		t.Fatal("expected IsQueueOverflow to match QueueOverflowError")
	}
	if !errors.Is(wrapped, ErrQueueFull) {
		t.Fatal("expected QueueOverflowError.Unwrap to expose the sentinel")
	}
}

func TestIsFatalReportsReason(t *testing.T) {
	err := &FatalError{Reason: "queue backing file unavailable", Err: errors.New("permission denied")}
	if !IsFatal(err) {
		t.Fatal("expected IsFatal to match FatalError")
	}
	if got := err.Error(); got == "" {
		t.Fatal("expected a non-empty error message")
	}
}
