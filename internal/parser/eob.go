package parser

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// EOBParser decodes EOB-Done packets. EOB-SpeakFreely is registered
// separately as EOBSpeakFreelyParser sharing the same decode logic,
// since the two packet types carry identical (empty) payloads and
// differ only in type code.
type EOBParser struct{}

func (p *EOBParser) PacketType() uint16 { return protocol.TypeServerEOBDone }
func (p *EOBParser) Name() string       { return "EOB-Done" }

func (p *EOBParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	return &protocol.EOBPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerEOBDone,
			RawData:    raw,
			Received:   time.Now(),
		},
		SpeakFreely: false,
	}, nil
}

// EOBSpeakFreelyParser decodes EOB-SpeakFreely packets, which invite
// the client to keep sending events without waiting for an ACK between
// each one.
type EOBSpeakFreelyParser struct{}

func (p *EOBSpeakFreelyParser) PacketType() uint16 { return protocol.TypeServerEOBSpeakFreely }
func (p *EOBSpeakFreelyParser) Name() string       { return "EOB-SpeakFreely" }

func (p *EOBSpeakFreelyParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	return &protocol.EOBPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerEOBSpeakFreely,
			RawData:    raw,
			Received:   time.Now(),
		},
		SpeakFreely: true,
	}, nil
}
