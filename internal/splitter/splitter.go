// Package splitter cuts a DMTP byte stream into individual framed
// packets, tolerating the partial reads and batched writes typical of a
// TCP socket by resynchronizing on the marker byte after any malformed
// header.
package splitter

import (
	"fmt"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// SplitPackets splits concatenated DMTP packets out of a stream buffer.
//
// Returns:
//   - packets: complete packets found in data
//   - residue: trailing incomplete bytes to prepend to the next read
//   - err: non-nil only when a marker byte could not be resynchronized
func SplitPackets(data []byte) (packets [][]byte, residue []byte, err error) {
	if len(data) == 0 {
		return nil, nil, nil
	}

	packets = make([][]byte, 0)
	offset := 0

	for offset < len(data) {
		if len(data)-offset < protocol.HeaderSize {
			return packets, data[offset:], nil
		}

		if data[offset]&protocol.MarkerMask != protocol.MarkerHighNibble {
			next := findNextMarker(data, offset+1)
			if next == -1 {
				return packets, nil, fmt.Errorf("no valid marker found at offset %d: 0x%02X", offset, data[offset])
			}
			offset = next
			continue
		}

		length := int(data[offset+2])
		total := protocol.HeaderSize + length

		if len(data)-offset < total {
			return packets, data[offset:], nil
		}

		packets = append(packets, data[offset:offset+total])
		offset += total
	}

	return packets, nil, nil
}

// findNextMarker scans forward for the next byte carrying a valid marker
// high nibble, used to resynchronize after a corrupted header.
func findNextMarker(data []byte, from int) int {
	for i := from; i < len(data); i++ {
		if data[i]&protocol.MarkerMask == protocol.MarkerHighNibble {
			return i
		}
	}
	return -1
}

// HasCompletePacket reports whether data holds at least one full packet.
func HasCompletePacket(data []byte) bool {
	if len(data) < protocol.HeaderSize {
		return false
	}
	if data[0]&protocol.MarkerMask != protocol.MarkerHighNibble {
		return false
	}
	length := int(data[2])
	return len(data) >= protocol.HeaderSize+length
}

// EstimatePacketCount gives a cheap, non-validating estimate of how many
// packets are present, for buffer-sizing heuristics.
func EstimatePacketCount(data []byte) int {
	count := 0
	offset := 0
	for offset+protocol.HeaderSize <= len(data) {
		if data[offset]&protocol.MarkerMask != protocol.MarkerHighNibble {
			offset++
			continue
		}
		count++
		offset += protocol.HeaderSize + int(data[offset+2])
	}
	return count
}

// GetPacketType returns the 16-bit packet type encoded across the
// marker's low nibble and the following type byte.
func GetPacketType(packet []byte) (uint16, error) {
	if len(packet) < 2 {
		return 0, fmt.Errorf("packet too small to determine type")
	}
	low := uint16(packet[0] &^ protocol.MarkerMask)
	return low<<8 | uint16(packet[1]), nil
}

// GetPayload returns the packet's payload bytes (without the header).
func GetPayload(packet []byte) ([]byte, error) {
	if len(packet) < protocol.HeaderSize {
		return nil, fmt.Errorf("packet too small")
	}
	length := int(packet[2])
	if len(packet) != protocol.HeaderSize+length {
		return nil, fmt.Errorf("packet length mismatch: declared %d, actual %d", protocol.HeaderSize+length, len(packet))
	}
	return packet[protocol.HeaderSize:], nil
}
