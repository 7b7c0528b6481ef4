// Package queue implements the paged, circular, thread-safe event store
// that sits between producers (GPS task, tag readers) and the protocol
// engine: enqueue, sequence, mark-sent/acknowledge, and spill to a
// backing file for crash recovery.
package queue

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// MaxDataLength is the largest payload a single packet may carry,
// matching the wire protocol's 8-bit length field.
const MaxDataLength = 255

// Packet is one queued event, addressed by (page, offset) rather than a
// pointer so the queue can be compacted and persisted without pointer
// fixups.
type Packet struct {
	HeaderType  uint16
	Sequence    uint32
	Priority    protocol.Priority
	Status      protocol.Status
	SeqPosition uint16
	SeqLength   uint16
	DataLength  uint8
	Data        [MaxDataLength]byte
	FormatSpec  uint16
}

// NewPacket builds a packet from a caller-supplied payload, truncating
// to MaxDataLength if necessary. Truncation is silent: no error is
// reported and the bytes past MaxDataLength are dropped.
func NewPacket(headerType uint16, priority protocol.Priority, data []byte, formatSpec uint16) Packet {
	var p Packet
	p.HeaderType = headerType
	p.Priority = priority
	p.FormatSpec = formatSpec
	n := len(data)
	if n > MaxDataLength {
		n = MaxDataLength
	}
	copy(p.Data[:], data[:n])
	p.DataLength = uint8(n)
	p.Status = protocol.StatusFilled
	return p
}

// Payload returns the packet's data bytes, excluding the unused tail of
// the fixed array.
func (p *Packet) Payload() []byte {
	return p.Data[:p.DataLength]
}

// IsSent reports whether the SENT status bit is set.
func (p *Packet) IsSent() bool {
	return p.Status&protocol.StatusSent != 0
}

// IsPreserved reports whether the PRESERVED status bit is set.
func (p *Packet) IsPreserved() bool {
	return p.Status&protocol.StatusPreserved != 0
}

// Fixtime reads the 4-byte embedded timestamp from the packet payload,
// per codec.FixtimeOffset.
func (p *Packet) Fixtime() (time.Time, error) {
	return codec.DecodeFixtime(p.Data[codec.FixtimeOffset : codec.FixtimeOffset+4])
}

// ShiftFixtime applies codec.ShiftFixtime's pre-sync heuristic to this
// packet's embedded timestamp.
func (p *Packet) ShiftFixtime(delta time.Duration) error {
	if int(p.DataLength) < codec.FixtimeOffset+4 {
		return nil
	}
	return codec.ShiftFixtime(p.Data[:p.DataLength], delta)
}
