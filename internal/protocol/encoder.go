package protocol

import (
	"github.com/intelcon-group/telematics-core/internal/validator"
)

// Encoder builds client-to-server DMTP packets. A zero-value Encoder is
// ready to use.
type Encoder struct {
	// Checksummed appends a Fletcher-16 checksum to every block written.
	// TCP sessions checksum, UDP sessions do not.
	Checksummed bool
}

// NewEncoder returns an Encoder configured for transport.
func NewEncoder(transportName string) *Encoder {
	return &Encoder{Checksummed: transportName == "tcp"}
}

// buildFrame frames content under packetType with the marker/type/
// length header shared by every client and server packet.
func buildFrame(packetType uint16, content []byte) []byte {
	pkt := make([]byte, 0, HeaderSize+len(content))
	pkt = append(pkt, MarkerHighNibble|byte(packetType>>8&0x0F), byte(packetType&0xFF), byte(len(content)))
	return append(pkt, content...)
}

// buildPacket frames content under packetType with the marker/type/
// length header.
func (e *Encoder) buildPacket(packetType uint16, content []byte) []byte {
	return buildFrame(packetType, content)
}

// UniqueID encodes the single-ID identification packet.
func (e *Encoder) UniqueID(id []byte) []byte {
	return e.buildPacket(TypeUniqueID, id)
}

// AccountDeviceID encodes the paired account/device identification
// packets, always sent together.
func (e *Encoder) AccountDeviceID(account, device string) [][]byte {
	return [][]byte{
		e.buildPacket(TypeAccountID, []byte(account)),
		e.buildPacket(TypeDeviceID, []byte(device)),
	}
}

// Event encodes one event payload under formatIndex's DMTSP-Format-N
// packet type, with payload already rendered for the session's current
// encoding.
func (e *Encoder) Event(formatIndex uint8, payload []byte) []byte {
	return e.buildPacket(TypeFormatBase+uint16(formatIndex), payload)
}

// EOB frames the end-of-block marker: EOB-Done (more=false) or
// EOB-More (more=true).
func (e *Encoder) EOB(more bool) []byte {
	if more {
		return e.buildPacket(TypeEOBMore, nil)
	}
	return e.buildPacket(TypeEOBDone, nil)
}

// Raw frames payload under an explicit wire type, for client packets
// that carry their own header rather than riding a DMTSP-Format-N
// event, such as a property report answering the server's GetProperty.
func (e *Encoder) Raw(packetType uint16, payload []byte) []byte {
	return e.buildPacket(packetType, payload)
}

// Error encodes a client-side error report.
func (e *Encoder) Error(code uint16) []byte {
	content := []byte{byte(code >> 8), byte(code)}
	return e.buildPacket(TypeError, content)
}

// FrameBlock concatenates every packet belonging to one block and, over
// TCP, appends the block's Fletcher-16 checksum.
func (e *Encoder) FrameBlock(packets ...[]byte) []byte {
	var block []byte
	for _, pkt := range packets {
		block = append(block, pkt...)
	}
	if e.Checksummed {
		return validator.Append(block)
	}
	return block
}
