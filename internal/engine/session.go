package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/intelcon-group/telematics-core/internal/codec"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/queue"
	"github.com/intelcon-group/telematics-core/internal/splitter"
)

// errSevere signals that the server rejected something in a way the
// protocol treats as session-ending, distinct from a transport-level
// I/O error that merely warrants a retry.
type errSevere struct{ reason string }

func (e errSevere) Error() string { return "engine: severe: " + e.reason }

// runSession drives one open transport through identification, block
// transmission, and response handling until the server ends the
// session (EOT), a severe error occurs, or there is nothing left to
// send.
func (e *Engine) runSession(ctx context.Context, transport protocol.Transport, transportName string) error {
	session := protocol.NewSessionState(transportName)
	enc := protocol.NewEncoder(transportName)
	var residue []byte
	formatDisabled := false
	encodingDowngradedThisSession := false

	if err := e.sendIdentification(transport, enc); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		block, sent, firstSeq := e.buildBlock(enc, session, formatDisabled)
		if len(sent) == 0 {
			return nil
		}

		if err := transport.Write(block); err != nil {
			return fmt.Errorf("engine: write block: %w", err)
		}
		session.Touch()
		for _, p := range sent {
			e.queue.MarkSent(p)
		}

		packets, newResidue, err := e.readPackets(transport, transportName, &residue)
		if err != nil {
			return fmt.Errorf("engine: read: %w", err)
		}
		residue = newResidue

		endSession, err := e.handlePackets(transport, enc, packets, session, firstSeq, len(sent), &encodingDowngradedThisSession, &formatDisabled)
		if err != nil {
			if sev, ok := err.(errSevere); ok {
				e.cfg.Logger.Printf("engine: %s", sev.Error())
			}
			return err
		}
		if endSession {
			return nil
		}
	}
}

// sendIdentification writes the identification packets unless they have
// already been sent; later sessions skip them. An Auth packet or a
// NAKIDInvalid clears identitySent, so identification is sent again.
func (e *Engine) sendIdentification(transport protocol.Transport, enc *protocol.Encoder) error {
	if e.identitySent {
		return nil
	}

	var frames [][]byte
	switch e.identMode {
	case protocol.IdentifyAccountDevice:
		frames = enc.AccountDeviceID(e.cfg.Account, e.cfg.Device)
	default:
		frames = [][]byte{enc.UniqueID(e.cfg.UniqueID)}
	}

	for _, f := range frames {
		if err := transport.Write(f); err != nil {
			return fmt.Errorf("engine: send identification: %w", err)
		}
	}
	e.identitySent = true
	return nil
}

// buildBlock drains up to MaxEventsPerBlock unsent packets into one
// framed, possibly checksummed block and returns the packets it
// selected (for MarkSent) and the sequence number of the first one.
func (e *Engine) buildBlock(enc *protocol.Encoder, session *protocol.SessionState, formatDisabled bool) (block []byte, sent []*queue.Packet, firstSeq uint32) {
	var frames [][]byte
	it := e.queue.Iterator()

	for len(sent) < e.cfg.MaxEventsPerBlock {
		p, ok := e.queue.Next(it)
		if !ok {
			break
		}
		if p.IsSent() {
			continue
		}
		payload, err := protocol.EncodePayload(session.Encoding, p.Payload())
		if err != nil {
			continue
		}
		if p.HeaderType != 0 {
			frames = append(frames, enc.Raw(p.HeaderType, payload))
		} else {
			formatIndex := defaultFormatIndex
			if formatDisabled {
				formatIndex = 0
			}
			frames = append(frames, enc.Event(formatIndex, payload))
		}
		if len(sent) == 0 {
			firstSeq = p.Sequence
		}
		sent = append(sent, p)
	}

	frames = append(frames, enc.EOB(false))
	block = enc.FrameBlock(frames...)
	return block, sent, firstSeq
}

// readPackets reads one transport chunk, prepends any carried-over
// stream residue, and splits it into framed packets. UDP datagrams are
// always self-contained, but running them through the same splitter is
// harmless and keeps the two transports on one code path.
func (e *Engine) readPackets(transport protocol.Transport, transportName string, residue *[]byte) (packets [][]byte, newResidue []byte, err error) {
	deadline := e.cfg.ReadTimeout
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	chunk, err := transport.Read(deadline)
	if err != nil {
		return nil, *residue, err
	}

	data := append(append([]byte{}, *residue...), chunk...)
	packets, newResidue, err = splitter.SplitPackets(data)
	if err != nil {
		return nil, nil, err
	}
	return packets, newResidue, nil
}

// handlePackets decodes and dispatches every packet from one read,
// reporting whether the session should end and any severe error
// encountered. While clock_need_adjust is set (an Auth challenge has
// been received but the client has not yet re-identified), every
// packet other than Auth and EOT is dropped, honoring the session's
// clock-sync gate.
func (e *Engine) handlePackets(transport protocol.Transport, enc *protocol.Encoder, raws [][]byte, session *protocol.SessionState, firstSeq uint32, sentInBlock int, encodingDowngraded *bool, formatDisabled *bool) (endSession bool, err error) {
	for _, raw := range raws {
		packetType, terr := splitter.GetPacketType(raw)
		if terr != nil {
			continue
		}
		payload, perr := splitter.GetPayload(raw)
		if perr != nil {
			continue
		}
		sp, derr := e.registry.Parse(packetType, payload, raw)
		if derr != nil {
			e.cfg.Logger.Printf("engine: undecodable server packet type 0x%04X: %v", packetType, derr)
			continue
		}

		if e.clockNeedAdjust {
			if _, isAuth := sp.(*protocol.AuthPacket); !isAuth {
				if _, isEOT := sp.(*protocol.EOTPacket); !isEOT {
					e.cfg.Logger.Printf("engine: dropping %s while clock sync is pending", sp.Name())
					continue
				}
			}
		}

		switch pkt := sp.(type) {
		case *protocol.EOBPacket:
			if !pkt.SpeakFreely {
				return false, nil
			}
			// SpeakFreely: keep sending without waiting for more ACKs.

		case *protocol.ACKPacket:
			if code, isNAK := pkt.NAKCode(); isNAK {
				sev, rerr := e.reactToNAK(code, session, sentInBlock, encodingDowngraded, formatDisabled)
				if rerr != nil {
					return true, rerr
				}
				if sev {
					return true, errSevere{reason: fmt.Sprintf("NAK 0x%04X", code)}
				}
				continue
			}
			numAck := int(uint8(pkt.Seq+1-firstSeq)) // mod 256 via uint8 wraparound
			if numAck == 0 {
				numAck = sentInBlock
			}
			e.queue.AcknowledgeFirst(numAck)

		case *protocol.EOTPacket:
			if !pkt.ServerTime.IsZero() {
				now := time.Now()
				delta := pkt.ServerTime.Sub(now)
				if abs(delta) > e.clockDeltaThreshold() {
					e.AdjustClock(pkt.ServerTime, now)
				}
			}
			return true, nil

		case *protocol.AuthPacket:
			// The AuthRequired-style clock-sync gate: identification is
			// no longer trusted, so every other packet is dropped (see
			// the clock_need_adjust check above) until re-identification
			// completes.
			e.identitySent = false
			e.clockNeedAdjust = true
			if ierr := e.sendIdentification(transport, enc); ierr != nil {
				return true, fmt.Errorf("engine: re-identify after Auth: %w", ierr)
			}
			e.clockNeedAdjust = false

		case *protocol.GetPropertyPacket:
			e.reportProperty(pkt.Key)

		case *protocol.SetPropertyPacket:
			e.applyProperty(pkt.Key, pkt.Value)

		case *protocol.FileUploadPacket:
			if e.cfg.FileSink != nil {
				e.cfg.FileSink(pkt.BlockIndex, pkt.Final, pkt.Data)
			}

		case *protocol.ErrorPacket:
			code, _ := pkt.NAKCode()
			sev, rerr := e.reactToNAK(code, session, sentInBlock, encodingDowngraded, formatDisabled)
			if rerr != nil {
				return true, rerr
			}
			if sev {
				return true, errSevere{reason: fmt.Sprintf("error 0x%04X", code)}
			}
		}
	}
	return false, nil
}

// abs returns the absolute value of a duration.
func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// reactToNAK applies the reaction table for a NAK/error code, reporting
// whether it should end the session as severe.
func (e *Engine) reactToNAK(code uint16, session *protocol.SessionState, sentInBlock int, encodingDowngraded, formatDisabled *bool) (severe bool, err error) {
	switch code {
	case protocol.NAKIDInvalid:
		e.identitySent = false
		if e.identMode == protocol.IdentifyUnique {
			e.identMode = protocol.IdentifyAccountDevice
		} else {
			e.identMode = protocol.IdentifyUnique
		}
		return false, nil

	case protocol.NAKAccountInvalid, protocol.NAKAccountSuspended,
		protocol.NAKDeviceInvalid, protocol.NAKDeviceSuspended:
		return true, nil

	case protocol.NAKPacketEncoding:
		if *encodingDowngraded {
			return true, nil
		}
		session.DowngradeEncoding()
		*encodingDowngraded = true
		return false, nil

	case protocol.NAKPacketChecksum, protocol.NAKBlockChecksum:
		return session.RegisterChecksumError(), nil

	case protocol.NAKProtocolError:
		return true, nil

	case protocol.NAKFormatDefinition, protocol.NAKFormatNotRecognized:
		e.queue.AcknowledgeFirst(sentInBlock)
		*formatDisabled = true
		return false, nil

	default:
		return true, nil
	}
}

// reportProperty answers a GetProperty request by queuing a
// high-priority property-report packet carrying the key and its
// current wire-encoded value. It rides the ordinary block/ACK cycle
// rather than writing straight to the socket, so it is retried the same
// way a lost event would be. Unknown keys or a store that is not
// configured are silently ignored; the server is expected to retry.
func (e *Engine) reportProperty(key uint16) {
	if e.props == nil {
		return
	}
	v, ok := e.props.Get(key)
	if !ok {
		return
	}
	payload := append(codec.WriteUint16BE(key), encodeWireValue(v)...)
	_ = e.queue.Enqueue(queue.NewPacket(protocol.TypePropertyReport, protocol.PriorityHigh, payload, 0))
}

// applyProperty stores a server-pushed property value, decoding raw
// according to the property's already-registered Kind.
func (e *Engine) applyProperty(key uint16, raw []byte) {
	if e.props == nil {
		return
	}
	current, ok := e.props.Get(key)
	if !ok {
		return
	}
	v, err := decodeWireValue(current.Kind, raw)
	if err != nil {
		e.cfg.Logger.Printf("engine: SetProperty 0x%04X: %v", key, err)
		return
	}
	if err := e.props.Set(key, v); err != nil {
		e.cfg.Logger.Printf("engine: SetProperty 0x%04X: %v", key, err)
	}
}

// encodeWireValue renders a property.Value as big-endian wire bytes.
func encodeWireValue(v property.Value) []byte {
	switch v.Kind {
	case property.KindU32:
		return codec.WriteUint32BE(v.U32)
	case property.KindI32:
		return codec.WriteUint32BE(uint32(v.I32))
	case property.KindF64:
		return codec.WriteUint64BE(math.Float64bits(v.F64))
	case property.KindBytes:
		return append([]byte{}, v.Bytes...)
	default:
		return nil
	}
}

// decodeWireValue parses wire bytes into a property.Value of kind.
func decodeWireValue(kind property.Kind, raw []byte) (property.Value, error) {
	switch kind {
	case property.KindU32:
		if len(raw) < 4 {
			return property.Value{}, fmt.Errorf("need 4 bytes for u32, got %d", len(raw))
		}
		return property.U32Value(codec.ReadUint32BE(raw)), nil
	case property.KindI32:
		if len(raw) < 4 {
			return property.Value{}, fmt.Errorf("need 4 bytes for i32, got %d", len(raw))
		}
		return property.I32Value(int32(codec.ReadUint32BE(raw))), nil
	case property.KindF64:
		if len(raw) < 8 {
			return property.Value{}, fmt.Errorf("need 8 bytes for f64, got %d", len(raw))
		}
		return property.F64Value(math.Float64frombits(codec.ReadUint64BE(raw))), nil
	case property.KindBytes:
		return property.BytesValue(raw), nil
	default:
		return property.Value{}, fmt.Errorf("unsupported property kind %d for wire decode", kind)
	}
}
