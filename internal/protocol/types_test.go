package protocol

import (
	"testing"
	"time"
)

func TestNewSessionStateStartsBelowCSV(t *testing.T) {
	s := NewSessionState("udp")
	if s.Encoding == EncodingCSV {
		t.Error("a fresh duplex session must not start at CSV")
	}
	if s.Identification != IdentifyNone {
		t.Errorf("got identification %v, want IdentifyNone", s.Identification)
	}
}

func TestDowngradeEncodingResetsChecksumErrors(t *testing.T) {
	s := NewSessionState("tcp")
	s.ChecksumErrors = 2

	next := s.DowngradeEncoding()
	if next != s.Encoding {
		t.Error("DowngradeEncoding should return the session's new encoding")
	}
	if s.ChecksumErrors != 0 {
		t.Errorf("got %d checksum errors after downgrade, want 0", s.ChecksumErrors)
	}
}

func TestDowngradeEncodingClampsAtBinary(t *testing.T) {
	s := NewSessionState("tcp")
	for i := 0; i < 5; i++ {
		s.DowngradeEncoding()
	}
	if s.Encoding != EncodingBinary {
		t.Errorf("got %v, want clamped at binary", s.Encoding)
	}
}

func TestRegisterChecksumErrorBecomesSevereAtLimit(t *testing.T) {
	s := NewSessionState("tcp")
	var severe bool
	for i := 0; i < ChecksumErrorLimit; i++ {
		severe = s.RegisterChecksumError()
	}
	if !severe {
		t.Error("expected severe once ChecksumErrorLimit is reached")
	}
}

func TestRegisterURLSwapExhaustsAtMaxURLSwaps(t *testing.T) {
	s := NewSessionState("udp")
	var exhausted bool
	for i := 0; i < MaxURLSwaps; i++ {
		exhausted = s.RegisterURLSwap()
	}
	if !exhausted {
		t.Error("expected exhaustion at MaxURLSwaps")
	}
}

func TestClockSyncDelta(t *testing.T) {
	var c ClockSync
	if c.Delta() != 0 {
		t.Error("an unsynchronized ClockSync should report zero delta")
	}

	local := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	server := local.Add(90 * time.Second)
	c.Apply(server, local)

	if c.Delta() != 90*time.Second {
		t.Errorf("got delta %v, want 90s", c.Delta())
	}
}
