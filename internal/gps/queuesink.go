package gps

import (
	"sync/atomic"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
)

// diagnosticStatus maps a motion EventType to the Format-3 status code
// it enqueues.
func diagnosticStatus(e EventType) protocol.DiagnosticStatus {
	switch e {
	case EventGPSLost:
		return protocol.StatusGPSLost
	case EventGPSBack:
		return protocol.StatusGPSBack
	default:
		return protocol.StatusDiagnosticMsg
	}
}

// QueueSink adapts a *queue.Queue into an EventSink, encoding each
// motion-derived event as a Format-3 diagnostic payload carrying the
// fix that triggered it and the EventType as a leading byte.
type QueueSink struct {
	queue    *queue.Queue
	priority protocol.Priority
	seq      uint32
}

// NewQueueSink returns a sink that enqueues motion events at priority.
func NewQueueSink(q *queue.Queue, priority protocol.Priority) *QueueSink {
	return &QueueSink{queue: q, priority: priority}
}

// EmitMotionEvent implements EventSink.
func (s *QueueSink) EmitMotionEvent(event EventType, fix Fix, at time.Time) {
	payload := make([]byte, 0, 1+8+4)
	payload = append(payload, byte(event))
	payload = append(payload, codec.EncodeGPSPoint(fix.Latitude, fix.Longitude)...)
	payload = append(payload, codec.WriteUint32BE(uint32(fix.Speed*100))...)

	seq := uint8(atomic.AddUint32(&s.seq, 1))
	body := protocol.BuildEventPayload(diagnosticStatus(event), at, payload, seq)
	_ = s.queue.Enqueue(queue.NewPacket(0, s.priority, body, 0))
}
