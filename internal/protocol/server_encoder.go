package protocol

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
)

// ServerEncoder builds server-to-client DMTP packets: the mirror image
// of Encoder, used by a test or reference server rather than the
// embedded client itself.
type ServerEncoder struct{}

// NewServerEncoder returns a ready-to-use ServerEncoder.
func NewServerEncoder() *ServerEncoder { return &ServerEncoder{} }

// ACK acknowledges events up to and including seq, or carries a NAK
// code instead of advancing the client's queue when nakCode != 0.
func (e *ServerEncoder) ACK(seq uint32, nakCode uint16) []byte {
	content := append(codec.WriteUint16BE(nakCode), codec.WriteUint32BE(seq)...)
	return buildFrame(TypeServerACK, content)
}

// EOB frames the server's end-of-block marker.
func (e *ServerEncoder) EOB(speakFreely bool) []byte {
	if speakFreely {
		return buildFrame(TypeServerEOBSpeakFreely, nil)
	}
	return buildFrame(TypeServerEOBDone, nil)
}

// EOT closes the session. On TCP, passing the server's current time
// lets the client check it against its own clock and resynchronize; an
// empty serverTime (UDP, or a TCP server with nothing to report) closes
// the session without carrying a time.
func (e *ServerEncoder) EOT(serverTime time.Time) []byte {
	if serverTime.IsZero() {
		return buildFrame(TypeServerEOT, nil)
	}
	return buildFrame(TypeServerEOT, codec.EncodeFixtime(serverTime))
}

// Auth issues a challenge nonce; the client answers by re-sending its
// identification, which does not include the nonce.
func (e *ServerEncoder) Auth(nonce []byte) []byte {
	return buildFrame(TypeServerAuth, nonce)
}

// GetProperty asks the client to report key's current value.
func (e *ServerEncoder) GetProperty(key uint16) []byte {
	return buildFrame(TypeServerGetProperty, codec.WriteUint16BE(key))
}

// SetProperty asks the client to overwrite key with the already wire-
// encoded value.
func (e *ServerEncoder) SetProperty(key uint16, value []byte) []byte {
	return buildFrame(TypeServerSetProperty, append(codec.WriteUint16BE(key), value...))
}

// FileUpload frames one block of a file push; the client engine passes
// each block, with its BlockIndex, to its optional FileSink.
func (e *ServerEncoder) FileUpload(blockIndex uint16, final bool, data []byte) []byte {
	content := make([]byte, 0, 3+len(data))
	content = append(content, codec.WriteUint16BE(blockIndex)...)
	if final {
		content = append(content, 1)
	} else {
		content = append(content, 0)
	}
	content = append(content, data...)
	return buildFrame(TypeServerFileUpload, content)
}

// Error reports a NAK outside the context of an ACK, used before any
// identification has established queue state to acknowledge against.
func (e *ServerEncoder) Error(code uint16) []byte {
	return buildFrame(TypeServerError, codec.WriteUint16BE(code))
}
