package parser

import (
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// GetPropertyParser decodes GetProperty packets: a bare 2-byte property
// key the client must answer with its current value.
type GetPropertyParser struct{}

func (p *GetPropertyParser) PacketType() uint16 { return protocol.TypeServerGetProperty }
func (p *GetPropertyParser) Name() string       { return "GetProperty" }

func (p *GetPropertyParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("getproperty: payload too short: %d bytes (need 2)", len(payload))
	}

	return &protocol.GetPropertyPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerGetProperty,
			RawData:    raw,
			Received:   time.Now(),
		},
		Key: codec.ReadUint16BE(payload[0:2]),
	}, nil
}

// SetPropertyParser decodes SetProperty packets: a 2-byte property key
// followed by the raw encoded value to store.
type SetPropertyParser struct{}

func (p *SetPropertyParser) PacketType() uint16 { return protocol.TypeServerSetProperty }
func (p *SetPropertyParser) Name() string       { return "SetProperty" }

func (p *SetPropertyParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("setproperty: payload too short: %d bytes (need at least 2)", len(payload))
	}

	value := make([]byte, len(payload)-2)
	copy(value, payload[2:])

	return &protocol.SetPropertyPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerSetProperty,
			RawData:    raw,
			Received:   time.Now(),
		},
		Key:   codec.ReadUint16BE(payload[0:2]),
		Value: value,
	}, nil
}
