package parser

import (
	"fmt"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/protocol"
)

// FileUploadParser decodes FileUpload packets: 2-byte block index, a
// 1-byte final-block flag, then the block's data. The engine hands each
// block to engine.Config.FileSink, if one is set; it does not assemble
// the file.
type FileUploadParser struct{}

func (p *FileUploadParser) PacketType() uint16 { return protocol.TypeServerFileUpload }
func (p *FileUploadParser) Name() string       { return "FileUpload" }

func (p *FileUploadParser) Parse(payload, raw []byte) (protocol.ServerPacket, error) {
	if len(payload) < 3 {
		return nil, fmt.Errorf("fileupload: payload too short: %d bytes (need at least 3)", len(payload))
	}

	data := make([]byte, len(payload)-3)
	copy(data, payload[3:])

	return &protocol.FileUploadPacket{
		BaseServerPacket: protocol.BaseServerPacket{
			PacketType: protocol.TypeServerFileUpload,
			RawData:    raw,
			Received:   time.Now(),
		},
		BlockIndex: codec.ReadUint16BE(payload[0:2]),
		Final:      payload[2] != 0,
		Data:       data,
	}, nil
}
