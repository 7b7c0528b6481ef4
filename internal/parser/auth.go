package parser

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// AuthParser decodes Auth packets. The entire payload is kept as an
// opaque nonce; the engine answers Auth by re-sending its plain
// identification and does not use the nonce.
type AuthParser struct{}

func (p *AuthParser) PacketType() uint16 { return protocol.TypeServerAuth }
func (p *AuthParser) Name() string       { return "Auth" }

func (p *AuthParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	nonce := make([]byte, len(payload))
	copy(nonce, payload)

	return &protocol.AuthPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerAuth,
			RawData:    raw,
			Received:   time.Now(),
		},
		Nonce: nonce,
	}, nil
}
