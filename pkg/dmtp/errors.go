package dmtp

import (
	"errors"
	"fmt"

	"github.com/intelcon-group/telematics-core/internal/queue"
)

// ErrQueueFull is returned by Client.Enqueue when the durable queue has
// no room left and overwrite-oldest has not been enabled.
var ErrQueueFull = queue.ErrOverflow

// SevereError reports that the server rejected something about the
// session itself (account not found, bad checksum beyond the retry
// limit, ...) rather than a single event; the engine closes the
// session and retries fresh on the next iteration.
type SevereError struct {
	Reason string
}

func (e *SevereError) Error() string { return fmt.Sprintf("dmtp: severe: %s", e.Reason) }

// QueueOverflowError reports that Enqueue was rejected because the
// durable queue is full.
type QueueOverflowError struct {
	Err error
}

func (e *QueueOverflowError) Error() string { return fmt.Sprintf("dmtp: queue overflow: %v", e.Err) }
func (e *QueueOverflowError) Unwrap() error { return e.Err }

// FatalError reports a condition the client cannot recover from without
// operator intervention: the event queue's backing file could not be
// opened, or required configuration is missing.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dmtp: fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("dmtp: fatal: %s", e.Reason)
}
func (e *FatalError) Unwrap() error { return e.Err }

// IsSevere reports whether err is (or wraps) a SevereError.
func IsSevere(err error) bool {
	var sev *SevereError
	return errors.As(err, &sev)
}

// IsQueueOverflow reports whether err is (or wraps) a QueueOverflowError.
func IsQueueOverflow(err error) bool {
	var qo *QueueOverflowError
	return errors.As(err, &qo) || errors.Is(err, ErrQueueFull)
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
