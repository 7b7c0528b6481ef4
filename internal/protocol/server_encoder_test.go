package protocol

import (
	"testing"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
)

func TestServerEncoderACKFrame(t *testing.T) {
	enc := NewServerEncoder()
	frame := enc.ACK(42, 0)

	packetType := uint16(frame[0]&0x0F)<<8 | uint16(frame[1])
	if packetType != TypeServerACK {
		t.Fatalf("packet type = 0x%04X, want 0x%04X", packetType, TypeServerACK)
	}
	payload := frame[HeaderSize:]
	if len(payload) != 6 {
		t.Fatalf("ACK payload length = %d, want 6", len(payload))
	}
	nak := uint16(payload[0])<<8 | uint16(payload[1])
	seq := uint32(payload[2])<<24 | uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
	if nak != 0 || seq != 42 {
		t.Fatalf("ACK decoded as nak=%d seq=%d, want nak=0 seq=42", nak, seq)
	}
}

func TestServerEncoderEOBDistinguishesSpeakFreely(t *testing.T) {
	enc := NewServerEncoder()

	done := enc.EOB(false)
	if pt := frameType(done); pt != TypeServerEOBDone {
		t.Fatalf("EOB(false) type = 0x%04X, want 0x%04X", pt, TypeServerEOBDone)
	}

	speakFreely := enc.EOB(true)
	if pt := frameType(speakFreely); pt != TypeServerEOBSpeakFreely {
		t.Fatalf("EOB(true) type = 0x%04X, want 0x%04X", pt, TypeServerEOBSpeakFreely)
	}
}

func TestServerEncoderEOTServerTime(t *testing.T) {
	enc := NewServerEncoder()

	immediate := enc.EOT(time.Time{})
	if len(immediate) != HeaderSize {
		t.Fatalf("EOT(zero) should carry an empty payload, got %d bytes total", len(immediate))
	}

	serverTime := time.Unix(1_700_000_060, 0).UTC()
	withTime := enc.EOT(serverTime)
	payload := withTime[HeaderSize:]
	if len(payload) != 4 {
		t.Fatalf("EOT(serverTime) payload length = %d, want 4", len(payload))
	}
	decoded, err := codec.DecodeFixtime(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.Equal(serverTime) {
		t.Fatalf("EOT server time decoded as %v, want %v", decoded, serverTime)
	}
}

func TestServerEncoderFileUploadFraming(t *testing.T) {
	enc := NewServerEncoder()
	frame := enc.FileUpload(7, true, []byte("chunk"))
	payload := frame[HeaderSize:]

	if len(payload) != 3+len("chunk") {
		t.Fatalf("payload length = %d, want %d", len(payload), 3+len("chunk"))
	}
	blockIndex := uint16(payload[0])<<8 | uint16(payload[1])
	if blockIndex != 7 {
		t.Fatalf("block index = %d, want 7", blockIndex)
	}
	if payload[2] != 1 {
		t.Fatalf("final flag = %d, want 1", payload[2])
	}
	if string(payload[3:]) != "chunk" {
		t.Fatalf("data = %q, want %q", payload[3:], "chunk")
	}
}

func TestServerEncoderSetPropertyFraming(t *testing.T) {
	enc := NewServerEncoder()
	frame := enc.SetProperty(0x0050, []byte("http://example.test/fw.tar.gz"))
	payload := frame[HeaderSize:]

	key := uint16(payload[0])<<8 | uint16(payload[1])
	if key != 0x0050 {
		t.Fatalf("key = 0x%04X, want 0x0050", key)
	}
	if string(payload[2:]) != "http://example.test/fw.tar.gz" {
		t.Fatalf("value = %q", payload[2:])
	}
}

func TestServerEncoderErrorFraming(t *testing.T) {
	enc := NewServerEncoder()
	frame := enc.Error(NAKPacketChecksum)
	payload := frame[HeaderSize:]
	if len(payload) != 2 {
		t.Fatalf("Error payload length = %d, want 2", len(payload))
	}
	code := uint16(payload[0])<<8 | uint16(payload[1])
	if code != NAKPacketChecksum {
		t.Fatalf("code = 0x%04X, want 0x%04X", code, NAKPacketChecksum)
	}
}

func frameType(frame []byte) uint16 {
	return uint16(frame[0]&0x0F)<<8 | uint16(frame[1])
}
