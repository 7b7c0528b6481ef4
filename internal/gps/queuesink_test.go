package gps

import (
	"testing"
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
)

func TestQueueSinkEnqueuesOneEventPerEmit(t *testing.T) {
	q := &queue.Queue{}
	q.Init(4)

	sink := NewQueueSink(q, protocol.PriorityHigh)
	fix := Fix{Latitude: 40.7128, Longitude: -74.0060, Speed: 12.5}

	sink.EmitMotionEvent(EventMotionStart, fix, time.Unix(1_700_000_000, 0))
	sink.EmitMotionEvent(EventMotionStop, fix, time.Unix(1_700_000_060, 0))

	it := q.Iterator()
	p, ok := q.Next(it)
	if !ok {
		t.Fatal("expected a queued packet for the first event")
	}
	if p.Priority != protocol.PriorityHigh {
		t.Fatalf("priority = %v, want PriorityHigh", p.Priority)
	}
	if len(p.Payload()) == 0 {
		t.Fatal("expected a non-empty payload")
	}

	p2, ok := q.Next(it)
	if !ok {
		t.Fatal("expected a queued packet for the second event")
	}
	if p2.Sequence <= p.Sequence {
		t.Fatalf("second packet sequence %d should exceed first %d", p2.Sequence, p.Sequence)
	}
}

func TestDiagnosticStatusMapping(t *testing.T) {
	cases := map[EventType]protocol.DiagnosticStatus{
		EventGPSLost:     protocol.StatusGPSLost,
		EventGPSBack:     protocol.StatusGPSBack,
		EventMotionStart: protocol.StatusDiagnosticMsg,
	}
	for event, want := range cases {
		if got := diagnosticStatus(event); got != want {
			t.Errorf("diagnosticStatus(%v) = %v, want %v", event, got, want)
		}
	}
}
