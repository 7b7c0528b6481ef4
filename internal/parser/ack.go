package parser

import (
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// ACKParser decodes ACK packets: 2-byte NAK code (0 if none) followed
// by the 4-byte sequence number being acknowledged.
type ACKParser struct{}

func (p *ACKParser) PacketType() uint16 { return protocol.TypeServerACK }
func (p *ACKParser) Name() string       { return "ACK" }

func (p *ACKParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	if len(payload) < 6 {
		return nil, fmt.Errorf("ack: payload too short: %d bytes (need 6)", len(payload))
	}

	return &protocol.ACKPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerACK,
			RawData:    raw,
			Received:   time.Now(),
		},
		Code: codec.ReadUint16BE(payload[0:2]),
		Seq:  codec.ReadUint32BE(payload[2:6]),
	}, nil
}
