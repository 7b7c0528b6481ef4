package protocol

import (
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
)

// DiagnosticStatus names a Format-3 status code a collaborator (the GPS
// task, the connectivity supervisor, the update downloader) enqueues as
// an ordinary durable event rather than writing straight to the socket.
type DiagnosticStatus uint16

const (
	StatusGPSInit          DiagnosticStatus = 0xF010
	StatusCnnctDown        DiagnosticStatus = 0xF020
	StatusCnnctRebuilt     DiagnosticStatus = 0xF021
	StatusGPSLost          DiagnosticStatus = 0xF030
	StatusGPSBack          DiagnosticStatus = 0xF031
	StatusLibStuck         DiagnosticStatus = 0xF040
	StatusCellDown         DiagnosticStatus = 0xF041
	StatusDiagnosticMsg    DiagnosticStatus = 0xF050
	StatusClientReboot     DiagnosticStatus = 0xF060
)

func (s DiagnosticStatus) String() string {
	switch s {
	case StatusGPSInit:
		return "GPS_INIT"
	case StatusCnnctDown:
		return "CNNCT_DOWN"
	case StatusCnnctRebuilt:
		return "CNNCT_REBUILT"
	case StatusGPSLost:
		return "GPS_LOST"
	case StatusGPSBack:
		return "GPS_BACK"
	case StatusLibStuck:
		return "LIB_STUCK"
	case StatusCellDown:
		return "CELL_DOWN"
	case StatusDiagnosticMsg:
		return "DIAGNOSTIC_MESSAGE"
	case StatusClientReboot:
		return "CLIENT_REBOOT"
	default:
		return "UNKNOWN_STATUS"
	}
}

// BuildEventPayload assembles a Format-3 (generic status report) event
// payload: status_u16 | timestamp_u32 | payload_bytes | sequence_u8.
// Every diagnostic and application event the client queues shares this
// layout; GPS point and application-specific fields for richer formats
// are appended by the caller as part of payload before the trailing
// sequence byte is known.
func BuildEventPayload(status DiagnosticStatus, timestamp time.Time, payload []byte, seq uint8) []byte {
	buf := make([]byte, 0, 2+4+len(payload)+1)
	buf = append(buf, codec.WriteUint16BE(uint16(status))...)
	buf = append(buf, codec.EncodeFixtime(timestamp)...)
	buf = append(buf, payload...)
	buf = append(buf, seq)
	return buf
}
