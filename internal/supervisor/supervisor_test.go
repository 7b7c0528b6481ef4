package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *queue.Queue) {
	t.Helper()
	q := &queue.Queue{}
	q.Init(32)
	cfg := Config{
		Timing:           Timing{TerminateIdle: 5 * time.Millisecond, DownIdle: 5 * time.Millisecond},
		WatchdogInterval: time.Millisecond,
	}
	s := New(cfg, nil, q, nil, nil, nil, nil)
	return s, q
}

func TestSupervisorLinkUpGatesUntilStateMachineIsUp(t *testing.T) {
	s, _ := newTestSupervisor(t)

	done := make(chan error, 1)
	go func() { done <- s.LinkUp(context.Background()) }()

	select {
	case <-done:
		t.Fatal("LinkUp returned before the link came up")
	case <-time.After(20 * time.Millisecond):
	}

	s.sm.LinkEstablished()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("LinkUp never unblocked")
	}
}

func TestSupervisorEmitsDiagnosticOnDownTransition(t *testing.T) {
	s, q := newTestSupervisor(t)
	s.sm.LinkEstablished()
	s.LinkDown()
	s.sm.ProbeFailed()

	if q.Len() == 0 {
		t.Fatal("expected a diagnostic packet queued for the Down transition")
	}

	it := q.Iterator()
	p, ok := q.Next(it)
	if !ok {
		t.Fatal("expected a packet")
	}
	status := protocol.DiagnosticStatus(uint16(p.Data[0])<<8 | uint16(p.Data[1]))
	if status != protocol.StatusCnnctDown {
		t.Errorf("got status %v, want %v", status, protocol.StatusCnnctDown)
	}
}

func TestSupervisorRunStopsOnReboot(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.wd.RegisterCallback("force-reboot", 1, func() bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-done:
		if !s.RebootRequested() {
			t.Fatal("Run returned but no reboot was recorded")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after the watchdog requested a reboot")
	}
}

func TestSupervisorShutdownStopsRun(t *testing.T) {
	s, _ := newTestSupervisor(t)
	s.sm.LinkEstablished()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	s.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after Shutdown")
	}
}
