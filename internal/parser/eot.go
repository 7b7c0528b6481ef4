package parser

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// EOTParser decodes EOT packets: an empty payload closes the session
// immediately, a 4-byte payload carries the server's current time
// (fixtime-encoded) for the client to check against its own clock.
type EOTParser struct{}

func (p *EOTParser) PacketType() uint16 { return protocol.TypeServerEOT }
func (p *EOTParser) Name() string       { return "EOT" }

func (p *EOTParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	var serverTime time.Time
	if len(payload) >= 4 {
		if t, err := codec.DecodeFixtime(payload[0:4]); err == nil {
			serverTime = t
		}
	}

	return &protocol.EOTPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerEOT,
			RawData:    raw,
			Received:   time.Now(),
		},
		ServerTime: serverTime,
	}, nil
}
