package parser

import (
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// ErrorParser decodes Error packets: a bare 2-byte NAK code, sent when
// the server must reject a packet before any ACK-carrying context
// exists.
type ErrorParser struct{}

func (p *ErrorParser) PacketType() uint16 { return protocol.TypeServerError }
func (p *ErrorParser) Name() string       { return "Error" }

func (p *ErrorParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("error: payload too short: %d bytes (need 2)", len(payload))
	}

	return &protocol.ErrorPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerError,
			RawData:    raw,
			Received:   time.Now(),
		},
		Code: codec.ReadUint16BE(payload[0:2]),
	}, nil
}
