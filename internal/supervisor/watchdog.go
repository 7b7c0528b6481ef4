package supervisor

import (
	"context"
	"sync"
	"time"
)

// StallFunc is one registered watchdog callback. It returns true when
// the subsystem it checks is currently stuck. Every registered callback
// is polled on each Watchdog tick; any true latches a stall for that
// callback's name.
type StallFunc func() bool

// Watchdog runs the registered stall callbacks on an interval and
// counts consecutive stalls per callback, escalating to a reboot
// request once a callback-specific threshold is reached.
type Watchdog struct {
	mu        sync.Mutex
	callbacks map[string]StallFunc
	streaks   map[string]int
	threshold map[string]int

	interval time.Duration
	onReboot func(reason string)

	lastRoundTrip time.Time
	maxDelay      time.Duration
}

// NewWatchdog returns a Watchdog polling every interval. maxDelay is
// COMM_MAX_DELAY: the protocol watchdog requests a reboot once
// maxDelay*360 seconds elapse without a successful round trip, mirroring
// the source's COMM_MAX_DELAY·360 threshold.
func NewWatchdog(interval, maxDelay time.Duration, onReboot func(reason string)) *Watchdog {
	return &Watchdog{
		callbacks: make(map[string]StallFunc),
		streaks:   make(map[string]int),
		threshold: make(map[string]int),
		interval:  interval,
		onReboot:  onReboot,
		maxDelay:  maxDelay,
	}
}

// RegisterCallback adds a named stall check, rebooting after
// consecutiveLimit consecutive true results. The network-monitor
// watchdog registers with consecutiveLimit=3; other callers may use
// whatever limit fits their subsystem.
func (w *Watchdog) RegisterCallback(name string, consecutiveLimit int, fn StallFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks[name] = fn
	w.threshold[name] = consecutiveLimit
}

// Unregister removes a previously registered callback.
func (w *Watchdog) Unregister(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.callbacks, name)
	delete(w.streaks, name)
	delete(w.threshold, name)
}

// NoteRoundTrip records a successful protocol round trip, resetting the
// protocol watchdog's elapsed-since-success clock.
func (w *Watchdog) NoteRoundTrip(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastRoundTrip = at
}

// checkProtocolStall reports whether the configured COMM_MAX_DELAY·360
// ceiling has elapsed since the last successful round trip.
func (w *Watchdog) checkProtocolStall(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxDelay <= 0 || w.lastRoundTrip.IsZero() {
		return false
	}
	return now.Sub(w.lastRoundTrip) > w.maxDelay*360
}

// Run polls every registered callback plus the built-in protocol
// watchdog on Watchdog's interval until ctx is canceled.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			w.tick(now)
		}
	}
}

func (w *Watchdog) tick(now time.Time) {
	w.mu.Lock()
	names := make([]string, 0, len(w.callbacks))
	for name := range w.callbacks {
		names = append(names, name)
	}
	w.mu.Unlock()

	for _, name := range names {
		w.mu.Lock()
		fn := w.callbacks[name]
		limit := w.threshold[name]
		w.mu.Unlock()
		if fn == nil {
			continue
		}

		stuck := fn()
		w.mu.Lock()
		if stuck {
			w.streaks[name]++
		} else {
			w.streaks[name] = 0
		}
		streak := w.streaks[name]
		w.mu.Unlock()

		if limit > 0 && streak >= limit {
			w.reboot("watchdog: " + name + " stalled")
		}
	}

	if w.checkProtocolStall(now) {
		w.reboot("watchdog: protocol round trip exceeded COMM_MAX_DELAY ceiling")
	}
}

func (w *Watchdog) reboot(reason string) {
	if w.onReboot != nil {
		w.onReboot(reason)
	}
}
