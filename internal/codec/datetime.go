package codec

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Fixtime encoding for the DMTP wire protocol and the event queue backing
// file. A fixtime is UTC seconds since the Unix epoch, stored as a 4-byte
// big-endian unsigned integer. Format-3 and later event payloads embed it
// starting at byte offset 2 of the packet content (status_u16 | fixtime_u32
// | ...), which is also the offset update_timestamps rewrites in place.

// FixtimeOffset is the byte offset of the embedded fixtime field within an
// event packet payload.
const FixtimeOffset = 2

// Year2000Epoch is the Unix timestamp for 2000-01-01T00:00:00Z, used by
// the pre-sync shift heuristic: a packet created before a GPS/clock lock
// often carries a fixtime below this value, copied forward from whatever
// the RTC held at boot.
const Year2000Epoch int64 = 946684800

// DecodeFixtime reads a 4-byte big-endian Unix timestamp as UTC time.
func DecodeFixtime(data []byte) (time.Time, error) {
	if len(data) < 4 {
		return time.Time{}, fmt.Errorf("fixtime requires 4 bytes, got %d", len(data))
	}
	sec := binary.BigEndian.Uint32(data)
	return time.Unix(int64(sec), 0).UTC(), nil
}

// EncodeFixtime writes t as a 4-byte big-endian Unix timestamp (UTC).
func EncodeFixtime(t time.Time) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(t.UTC().Unix()))
	return buf
}

// RewriteFixtime rewrites the 4-byte fixtime embedded at FixtimeOffset
// within payload in place and returns the previous value.
func RewriteFixtime(payload []byte, newTime time.Time) (time.Time, error) {
	if len(payload) < FixtimeOffset+4 {
		return time.Time{}, fmt.Errorf("payload too short to contain fixtime: %d bytes", len(payload))
	}
	old, err := DecodeFixtime(payload[FixtimeOffset : FixtimeOffset+4])
	if err != nil {
		return time.Time{}, err
	}
	copy(payload[FixtimeOffset:FixtimeOffset+4], EncodeFixtime(newTime))
	return old, nil
}

// ShiftFixtime applies delta to the fixtime embedded in payload, honoring
// the pre-sync heuristic: when |delta| exceeds one
// day, only timestamps that currently read before Year2000Epoch are
// shifted (they are assumed to be un-synchronized placeholder values);
// otherwise every timestamp is shifted unconditionally.
func ShiftFixtime(payload []byte, delta time.Duration) error {
	if len(payload) < FixtimeOffset+4 {
		return fmt.Errorf("payload too short to contain fixtime: %d bytes", len(payload))
	}
	old, err := DecodeFixtime(payload[FixtimeOffset : FixtimeOffset+4])
	if err != nil {
		return err
	}
	const oneDay = 24 * time.Hour
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs > oneDay && old.Unix() >= Year2000Epoch {
		return nil
	}
	copy(payload[FixtimeOffset:FixtimeOffset+4], EncodeFixtime(old.Add(delta)))
	return nil
}
