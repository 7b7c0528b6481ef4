// Package supervisor implements the connectivity supervisor: the
// top-level state machine that brings the wireless link up, watches for
// stalls, rotates server URLs, and gates the protocol engine on link
// state, hosting the watchdog, update downloader, and log uploader as
// collaborators.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errTerminating is returned by Await when the machine has moved to
// Terminating while a caller was waiting for some other state.
var errTerminating = errors.New("supervisor: terminating")

// State is one node of the connectivity state machine.
type State uint8

const (
	StateInit State = iota
	StateUp
	StateChecking
	StateDown
	StateRebuilding
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateUp:
		return "Up"
	case StateChecking:
		return "Checking"
	case StateDown:
		return "Down"
	case StateRebuilding:
		return "Rebuilding"
	case StateTerminating:
		return "Terminating"
	default:
		return "Unknown"
	}
}

// Timing configures the Down→Rebuilding escalation: the first three
// consecutive failures wait only TerminateIdle before the supervisor
// tries again; every failure after that waits the much longer DownIdle.
type Timing struct {
	TerminateIdle time.Duration
	DownIdle      time.Duration
}

// DefaultTiming mirrors the source's NETWORK_TERMINATE_IDLE /
// NETWORK_DOWN_IDLE defaults.
var DefaultTiming = Timing{
	TerminateIdle: 2 * time.Minute,
	DownIdle:      15 * time.Minute,
}

// Machine is the connectivity state machine. It is safe for concurrent
// use: the state loop, the watchdog, and protocol-engine callbacks all
// report transitions through its methods.
type Machine struct {
	mu           sync.Mutex
	state        State
	timing       Timing
	failures     int
	downSince    time.Time
	onTransition func(from, to State)
	notify       chan struct{}
}

// NewMachine returns a Machine starting at Init.
func NewMachine(timing Timing, onTransition func(from, to State)) *Machine {
	if timing.TerminateIdle <= 0 {
		timing = DefaultTiming
	}
	return &Machine{state: StateInit, timing: timing, onTransition: onTransition, notify: make(chan struct{})}
}

// Current reports the machine's current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to a new state under lock and fires the callback
// outside the lock so it may itself call back into the machine.
func (m *Machine) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	old := m.notify
	m.notify = make(chan struct{})
	m.mu.Unlock()
	close(old)
	if from != to && m.onTransition != nil {
		m.onTransition(from, to)
	}
}

// Await blocks until want is the current state or ctx is canceled. It is
// how the protocol engine's LinkUp gate waits for the supervisor to
// bring the wireless link up.
func (m *Machine) Await(ctx context.Context, want State) error {
	for {
		m.mu.Lock()
		current := m.state
		ch := m.notify
		m.mu.Unlock()
		if current == want {
			return nil
		}
		if current == StateTerminating && want != StateTerminating {
			return errTerminating
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// LinkEstablished reports a successful initial link establishment at
// boot, moving Init → Up.
func (m *Machine) LinkEstablished() {
	if m.Current() == StateInit {
		m.transition(StateUp)
	}
}

// ReportTimeout reports a protocol-level timeout or an explicit
// supervisor timer firing while the link is believed to be up, moving
// Up → Checking.
func (m *Machine) ReportTimeout() {
	if m.Current() == StateUp {
		m.transition(StateChecking)
	}
}

// ProbeSucceeded reports a successful probe against every configured
// target (the supervisor's probe is a TCP dial), moving Checking or
// Rebuilding → Up and resetting the failure
// counter (the Down/Rebuilding cycle is considered recovered).
func (m *Machine) ProbeSucceeded() {
	m.mu.Lock()
	wasChecking := m.state == StateChecking
	wasRebuilding := m.state == StateRebuilding
	m.failures = 0
	m.mu.Unlock()
	if wasChecking || wasRebuilding {
		m.transition(StateUp)
	}
}

// ProbeFailed reports a failed probe, moving Checking → Down.
func (m *Machine) ProbeFailed() {
	if m.Current() == StateChecking {
		m.mu.Lock()
		m.downSince = time.Now()
		m.mu.Unlock()
		m.transition(StateDown)
	}
}

// IdleElapsed reports that the state machine has waited out its current
// Down idle period (TerminateIdle for the first three consecutive
// failures, DownIdle afterward) and should attempt a reconnect, moving
// Down → Rebuilding. The caller is responsible for timing the wait;
// NextIdle reports how long to wait before calling this.
func (m *Machine) IdleElapsed() {
	if m.Current() != StateDown {
		return
	}
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
	m.transition(StateRebuilding)
}

// NextIdle returns how long the supervisor should wait in the Down
// state before attempting the next reconnect.
func (m *Machine) NextIdle() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures < 3 {
		return m.timing.TerminateIdle
	}
	return m.timing.DownIdle
}

// Outage reports how long the link has been down, valid from the
// moment ProbeFailed fires until the next ProbeSucceeded.
func (m *Machine) Outage() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downSince.IsZero() {
		return 0
	}
	return time.Since(m.downSince)
}

// ReconnectFailed reports that a Rebuilding attempt itself failed,
// returning to Down to wait out another idle period.
func (m *Machine) ReconnectFailed() {
	if m.Current() == StateRebuilding {
		m.transition(StateDown)
	}
}

// Terminate moves to Terminating from any state, on shutdown signal,
// update trigger, or scheduled reboot.
func (m *Machine) Terminate() {
	m.transition(StateTerminating)
}
