package engine

import (
	"context"
	"testing"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
)

// fakeTransport scripts a sequence of reads and records every write, so
// a session can be driven deterministically without a real socket.
type fakeTransport struct {
	reads   [][]byte
	readPos int
	writes  [][]byte
	opened  bool
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Open(addr string, timeout time.Duration) error {
	f.opened = true
	return nil
}

func (f *fakeTransport) Close() error { f.opened = false; return nil }

func (f *fakeTransport) Write(data []byte) error {
	cp := append([]byte{}, data...)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeTransport) Read(deadline time.Duration) ([]byte, error) {
	if f.readPos >= len(f.reads) {
		return nil, nil
	}
	r := f.reads[f.readPos]
	f.readPos++
	return r, nil
}

func (f *fakeTransport) ResetAddr() {}

// frame builds one raw DMTP packet: marker/type/length header plus
// payload, mirroring protocol.Encoder.buildPacket without importing an
// unexported helper.
func frame(packetType uint16, payload []byte) []byte {
	pkt := make([]byte, 0, 3+len(payload))
	pkt = append(pkt, protocol.MarkerHighNibble|byte(packetType>>8&0x0F), byte(packetType&0xFF), byte(len(payload)))
	return append(pkt, payload...)
}

func ackFrame(seq uint32) []byte {
	payload := append([]byte{0x00, 0x00}, byte(seq>>24), byte(seq>>16), byte(seq>>8), byte(seq))
	return frame(protocol.TypeServerACK, payload)
}

func eobDoneFrame() []byte {
	return frame(protocol.TypeServerEOBDone, nil)
}

func eotFrame() []byte {
	return frame(protocol.TypeServerEOT, nil)
}

func eotFrameWithServerTime(t time.Time) []byte {
	return frame(protocol.TypeServerEOT, codec.EncodeFixtime(t))
}

func authFrame(nonce []byte) []byte {
	return frame(protocol.TypeServerAuth, nonce)
}

func newTestQueue(t *testing.T, n int) *queue.Queue {
	t.Helper()
	q := &queue.Queue{}
	q.Init(64)
	for i := 0; i < n; i++ {
		payload := make([]byte, 10)
		if err := q.Enqueue(queue.NewPacket(0, protocol.PriorityNormal, payload, 0)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	return q
}

func TestRunSessionDrainsQueueOnACK(t *testing.T) {
	q := newTestQueue(t, 2)
	e := New(Config{UniqueID: []byte{0x01, 0x02}}, q, nil)

	_, _, ok := q.LastSequence()
	if !ok {
		t.Fatal("expected a last sequence")
	}
	it := q.Iterator()
	first, ok := q.Next(it)
	if !ok {
		t.Fatal("expected a first packet")
	}
	firstSeq := first.Sequence

	tr := &fakeTransport{
		reads: [][]byte{
			append(ackFrame(firstSeq+1), eobDoneFrame()...),
			eotFrame(),
		},
	}

	if err := e.runSession(context.Background(), tr, "udp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.Len() != 0 {
		t.Errorf("got %d packets remaining, want 0 after full ACK", q.Len())
	}
	if len(tr.writes) == 0 {
		t.Fatal("expected at least one write")
	}
}

func TestRunSessionNothingToSendEndsImmediately(t *testing.T) {
	q := &queue.Queue{}
	q.Init(64)
	e := New(Config{UniqueID: []byte{0x01}}, q, nil)

	tr := &fakeTransport{}
	if err := e.runSession(context.Background(), tr, "udp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tr.writes) != 1 {
		t.Errorf("expected exactly the identification write when the queue is empty, got %d", len(tr.writes))
	}
}

// TestRunSessionEOTAdjustsClockPastThreshold exercises the clock-sync
// scenario an EOT server-time jump beyond the configured threshold
// should trigger: every queued packet's embedded fixtime shifts by the
// observed delta once the session closes.
func TestRunSessionEOTAdjustsClockPastThreshold(t *testing.T) {
	q := &queue.Queue{}
	q.Init(64)
	originalFixtime := time.Unix(1_600_000_000, 0).UTC()
	payload := make([]byte, 16)
	copy(payload[codec.FixtimeOffset:codec.FixtimeOffset+4], codec.EncodeFixtime(originalFixtime))
	if err := q.Enqueue(queue.NewPacket(0x1000, protocol.PriorityNormal, payload, 0)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	store := property.NewStore()
	store.Register(property.GPSClockDelta, "GPS_CLOCK_DELTA", property.KindU32, false, true, property.U32Value(10))

	e := New(Config{UniqueID: []byte{0x01}}, q, store)

	serverTime := time.Now().Add(75 * time.Second)
	tr := &fakeTransport{
		reads: [][]byte{
			eotFrameWithServerTime(serverTime),
		},
	}

	if err := e.runSession(context.Background(), tr, "tcp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it := q.Iterator()
	p, ok := q.Next(it)
	if !ok {
		t.Fatal("expected the packet to still be queued (unacknowledged after EOT)")
	}
	shifted, err := p.Fixtime()
	if err != nil {
		t.Fatalf("unexpected error reading fixtime: %v", err)
	}
	gotDelta := shifted.Sub(originalFixtime)
	if gotDelta < 70*time.Second || gotDelta > 80*time.Second {
		t.Fatalf("got fixtime shifted by %s, want roughly 75s", gotDelta)
	}
	if e.clockNeedAdjust {
		t.Error("expected clock_need_adjust to be cleared once the shift completes")
	}
}

// TestRunSessionAuthGatesUntilReidentified exercises the AuthRequired-
// style clock-sync gate: an Auth challenge forces an immediate
// re-identification write, and the session simply runs out of unsent
// work afterward since the one packet already went out.
func TestRunSessionAuthGatesUntilReidentified(t *testing.T) {
	q := newTestQueue(t, 1)
	e := New(Config{UniqueID: []byte{0x01, 0x02}}, q, nil)

	tr := &fakeTransport{
		reads: [][]byte{
			authFrame([]byte{0xAA, 0xBB}),
		},
	}

	if err := e.runSession(context.Background(), tr, "tcp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tr.writes) != 3 {
		t.Fatalf("got %d writes, want 3 (identification, block, re-identification after Auth)", len(tr.writes))
	}
	if e.clockNeedAdjust {
		t.Error("expected clock_need_adjust to be cleared once re-identification completes")
	}
	if !e.identitySent {
		t.Error("expected identitySent to be true again after re-identification")
	}
}

func TestRunSessionSeveresOnAccountInvalid(t *testing.T) {
	q := newTestQueue(t, 1)
	e := New(Config{UniqueID: []byte{0x01}}, q, nil)

	nakPayload := append([]byte{byte(protocol.NAKAccountInvalid >> 8), byte(protocol.NAKAccountInvalid)}, 0, 0, 0, 0)
	tr := &fakeTransport{
		reads: [][]byte{frame(protocol.TypeServerACK, nakPayload)},
	}

	if err := e.runSession(context.Background(), tr, "udp"); err == nil {
		t.Fatal("expected a severe error")
	}
}

func TestReactToNAKEncodingDowngradesOncePerSession(t *testing.T) {
	q := newTestQueue(t, 1)
	e := New(Config{}, q, nil)
	session := protocol.NewSessionState("udp")
	downgraded := false
	formatDisabled := false

	severe, err := e.reactToNAK(protocol.NAKPacketEncoding, session, 1, &downgraded, &formatDisabled)
	if err != nil || severe {
		t.Fatalf("first encoding NAK should not be severe: severe=%v err=%v", severe, err)
	}
	if session.Encoding != protocol.EncodingHex {
		t.Errorf("got encoding %v, want hex after first downgrade from the base64 starting point", session.Encoding)
	}

	severe, err = e.reactToNAK(protocol.NAKPacketEncoding, session, 1, &downgraded, &formatDisabled)
	if err != nil || !severe {
		t.Fatalf("second encoding NAK in the same session should be severe: severe=%v err=%v", severe, err)
	}
}

func TestReactToNAKChecksumBecomesSevereAfterLimit(t *testing.T) {
	q := newTestQueue(t, 1)
	e := New(Config{}, q, nil)
	session := protocol.NewSessionState("tcp")
	downgraded, formatDisabled := false, false

	var severe bool
	for i := 0; i < protocol.ChecksumErrorLimit; i++ {
		var err error
		severe, err = e.reactToNAK(protocol.NAKBlockChecksum, session, 1, &downgraded, &formatDisabled)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !severe {
		t.Error("expected checksum NAK to become severe at the configured limit")
	}
}

func TestApplyAndReportPropertyRoundTrip(t *testing.T) {
	q := newTestQueue(t, 0)
	store := property.NewStore()
	store.Register(0x0022, "COMM_MIN_XMIT_RATE", property.KindU32, false, true, property.U32Value(300))

	e := New(Config{}, q, store)

	e.applyProperty(0x0022, []byte{0x00, 0x00, 0x02, 0x58}) // 600
	v, ok := store.Get(0x0022)
	if !ok || v.U32 != 600 {
		t.Fatalf("got %+v, want U32=600", v)
	}

	e.reportProperty(0x0022)
	if q.Len() != 1 {
		t.Fatalf("got %d queued packets, want 1 property report", q.Len())
	}
}
