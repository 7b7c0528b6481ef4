package dmtp

import (
	"testing"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

func TestNewBuildsAReadyClient(t *testing.T) {
	c, err := New(
		WithServers("127.0.0.1:8090", "127.0.0.1:8091"),
		WithQueue(8, "", false),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Properties() == nil {
		t.Fatal("expected a non-nil property store")
	}
	if got := c.State(); got != 0 {
		t.Logf("initial state: %v", got) // the state machine's zero value is a valid starting state
	}
}

func TestEnqueueWrapsOverflowAsTypedError(t *testing.T) {
	c, err := New(WithQueue(1, "", false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// The queue's single page easily holds a handful of tiny packets, so
	// fill it well past capacity to force an overflow deterministically.
	var last error
	for i := 0; i < 10_000; i++ {
		last = c.Enqueue(0, protocol.PriorityNormal, []byte("x"), 0)
		if last != nil {
			break
		}
	}
	if last == nil {
		t.Fatal("expected Enqueue to eventually report overflow")
	}
	if !IsQueueOverflow(last) {
		t.Fatalf("expected a queue overflow error, got %v", last)
	}
}
