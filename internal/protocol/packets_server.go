package protocol

import "time"

// EOBPacket closes out a block: EOB-Done tells the client the server has
// nothing more to say this cycle, EOB-SpeakFreely invites the client to
// keep sending without waiting for further ACKs.
type EOBPacket struct {
	BaseServerPacket
	SpeakFreely bool
}

func (p *EOBPacket) Name() string {
	if p.SpeakFreely {
		return "EOB-SpeakFreely"
	}
	return "EOB-Done"
}

// ACKPacket acknowledges receipt of events up to and including Sequence.
// A NAK-carrying ACK reports Code != 0 instead of advancing the queue.
type ACKPacket struct {
	BaseServerPacket
	Seq  uint32
	Code uint16
}

func (p *ACKPacket) Name() string { return "ACK" }

func (p *ACKPacket) Sequence() uint32 { return p.Seq }

func (p *ACKPacket) NAKCode() (uint16, bool) {
	return p.Code, p.Code != 0
}

// EOTPacket tells the client the session is complete. On TCP it also
// carries the server's notion of the current time, the basis for the
// client's clock-sync check; ServerTime is zero when the payload is
// empty (UDP, or a TCP server with nothing to correct).
type EOTPacket struct {
	BaseServerPacket
	ServerTime time.Time
}

func (p *EOTPacket) Name() string { return "EOT" }

// AuthPacket carries a server-issued challenge nonce. The engine reacts
// by re-sending its plain UniqueID/AccountID identification; the nonce
// itself is not used.
type AuthPacket struct {
	BaseServerPacket
	Nonce []byte
}

func (p *AuthPacket) Name() string { return "Auth" }

// GetPropertyPacket asks the client to report the current value of a
// single property key.
type GetPropertyPacket struct {
	BaseServerPacket
	Key uint16
}

func (p *GetPropertyPacket) Name() string { return "GetProperty" }

// SetPropertyPacket asks the client to overwrite a property's value.
type SetPropertyPacket struct {
	BaseServerPacket
	Key   uint16
	Value []byte
}

func (p *SetPropertyPacket) Name() string { return "SetProperty" }

// FileUploadPacket carries one block of a firmware/property file the
// server is pushing to the client, handed by the engine to its optional
// FileSink (not to the supervisor's update downloader).
type FileUploadPacket struct {
	BaseServerPacket
	BlockIndex uint16
	Final      bool
	Data       []byte
}

func (p *FileUploadPacket) Name() string { return "FileUpload" }

// ErrorPacket reports a NAK condition outside the context of an ACK,
// such as a malformed identification packet before any queue state
// exists to acknowledge against.
type ErrorPacket struct {
	BaseServerPacket
	Code uint16
}

func (p *ErrorPacket) Name() string { return "Error" }

func (p *ErrorPacket) NAKCode() (uint16, bool) {
	return p.Code, true
}
