package protocol

import "time"

// SessionState tracks the identification and transport posture of one
// DMTP session.
type SessionState struct {
	Identification IdentificationMode
	Encoding       Encoding
	Transport      string // "udp" or "tcp"

	ChecksumErrors int
	URLSwaps       int

	SentFirstPacket bool
	AwaitingACK     bool
	AwaitingEOT     bool

	LastActivity time.Time
}

// NewSessionState returns a session primed at no identification and the
// richest encoding a fresh duplex channel is allowed to open with.
// CSV is richest overall but may never be the first packet on a duplex
// channel, so a new session starts one rung down at Base64 instead;
// Downgrade only ever moves toward binary from there.
func NewSessionState(transport string) *SessionState {
	return &SessionState{
		Identification: IdentifyNone,
		Encoding:       EncodingBase64,
		Transport:      transport,
		LastActivity:   time.Now(),
	}
}

// RegisterChecksumError increments the session's checksum-error counter
// and reports whether the session has now crossed ChecksumErrorLimit.
func (s *SessionState) RegisterChecksumError() (severe bool) {
	s.ChecksumErrors++
	return s.ChecksumErrors >= ChecksumErrorLimit
}

// DowngradeEncoding moves the session to the next lower encoding and
// resets the checksum-error counter, since a new encoding gets a fresh
// error budget.
func (s *SessionState) DowngradeEncoding() Encoding {
	s.Encoding = s.Encoding.Downgrade()
	s.ChecksumErrors = 0
	return s.Encoding
}

// RegisterURLSwap increments the swap counter and reports whether the
// session has exhausted MaxURLSwaps.
func (s *SessionState) RegisterURLSwap() (exhausted bool) {
	s.URLSwaps++
	return s.URLSwaps >= MaxURLSwaps
}

// Touch marks the session as having just exchanged a packet, for
// watchdog/stall accounting upstream.
func (s *SessionState) Touch() {
	s.LastActivity = time.Now()
}

// ClockSync tracks the device's notion of how far its local clock has
// drifted from the server's, established by the engine's AdjustClock
// (from an EOT's server time or a GPS clock jump) and applied by the
// event queue's timestamp-shift operation.
type ClockSync struct {
	Synchronized bool
	ServerTime   time.Time
	LocalTime    time.Time
}

// Delta returns how far the local clock must be shifted to match the
// server: ServerTime - LocalTime.
func (c ClockSync) Delta() time.Duration {
	if !c.Synchronized {
		return 0
	}
	return c.ServerTime.Sub(c.LocalTime)
}

// Apply records a new clock reference pair taken at localNow, observing
// serverNow.
func (c *ClockSync) Apply(serverNow, localNow time.Time) {
	c.Synchronized = true
	c.ServerTime = serverNow
	c.LocalTime = localNow
}
