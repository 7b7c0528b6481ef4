package protocol

import "testing"

func TestEOBPacketName(t *testing.T) {
	done := &EOBPacket{SpeakFreely: false}
	if done.Name() != "EOB-Done" {
		t.Errorf("got %q, want EOB-Done", done.Name())
	}
	freely := &EOBPacket{SpeakFreely: true}
	if freely.Name() != "EOB-SpeakFreely" {
		t.Errorf("got %q, want EOB-SpeakFreely", freely.Name())
	}
}

func TestACKPacketNAKCode(t *testing.T) {
	clean := &ACKPacket{Code: 0}
	if _, isNAK := clean.NAKCode(); isNAK {
		t.Error("zero code should not report a NAK")
	}

	nak := &ACKPacket{Code: NAKBlockChecksum}
	code, isNAK := nak.NAKCode()
	if !isNAK || code != NAKBlockChecksum {
		t.Errorf("got code=0x%04X isNAK=%v, want 0x%04X true", code, isNAK, NAKBlockChecksum)
	}
}

func TestBaseServerPacketAccessors(t *testing.T) {
	base := BaseServerPacket{PacketType: TypeServerEOT, RawData: []byte{1, 2, 3}}
	if base.Type() != TypeServerEOT {
		t.Errorf("got type 0x%04X, want 0x%04X", base.Type(), TypeServerEOT)
	}
	if len(base.Raw()) != 3 {
		t.Errorf("got %d raw bytes, want 3", len(base.Raw()))
	}
}

func TestErrorPacketAlwaysReportsNAK(t *testing.T) {
	p := &ErrorPacket{Code: NAKProtocolError}
	code, isNAK := p.NAKCode()
	if !isNAK || code != NAKProtocolError {
		t.Errorf("got code=0x%04X isNAK=%v", code, isNAK)
	}
}
