// Command dmtp-refserver is a reference DMTP fleet-management server: it
// accepts client sessions over TCP or UDP, ACKs every event block it
// receives, and logs every decoded packet. It exists to exercise
// telematics-client during development, not to run a fleet.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/intelcon-group/telematics-core/internal/protocol"
	"github.com/intelcon-group/telematics-core/internal/splitter"
)

var (
	transport = flag.String("transport", "udp", "listen transport: udp or tcp")
	port      = flag.Int("port", 8090, "listen port")
	verbose   = flag.Bool("verbose", false, "log every packet's raw hex")
	timeout   = flag.Duration("timeout", 2*time.Minute, "per-connection read idle timeout (tcp only)")
)

func main() {
	flag.Parse()

	switch *transport {
	case "tcp":
		runTCP(*port)
	case "udp":
		runUDP(*port)
	default:
		log.Fatalf("dmtp-refserver: unknown -transport %q (want udp or tcp)", *transport)
	}
}

func runTCP(port int) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		log.Fatalf("dmtp-refserver: listen: %v", err)
	}
	log.Printf("dmtp-refserver: listening on tcp :%d", port)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("dmtp-refserver: accept: %v", err)
			continue
		}
		go handleTCPConn(conn)
	}
}

// session tracks one device's identity and acknowledgement counter.
// seqBase advances by the number of event packets acked in each block,
// the same running total the client's queue assigns on enqueue, so an
// ACK's echoed sequence satisfies the client's
// uint8(pkt.Seq+1-firstSeq) == block size arithmetic as long as every
// block this device has ever sent has been acked in order.
type session struct {
	mu       sync.Mutex
	identity string
	seqBase  uint32
}

func (s *session) ackSeq(numEvents int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqBase += uint32(numEvents)
	return s.seqBase
}

func handleTCPConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	log.Printf("[%s] connected", remote)

	sess := &session{identity: remote}
	var residue []byte
	readBuf := make([]byte, 4096)

	for {
		conn.SetReadDeadline(time.Now().Add(*timeout))
		n, err := conn.Read(readBuf)
		if err != nil {
			log.Printf("[%s] disconnected: %v", remote, err)
			return
		}

		residue = append(residue, readBuf[:n]...)
		packets, newResidue, err := splitter.SplitPackets(residue)
		if err != nil {
			log.Printf("[%s] resync: %v", remote, err)
			residue = nil
			continue
		}
		residue = newResidue

		responses := processBlock(sess, packets, remote)
		for _, r := range responses {
			if *verbose {
				log.Printf("[%s] TX: %s", remote, hex.EncodeToString(r))
			}
			if _, err := conn.Write(r); err != nil {
				log.Printf("[%s] write: %v", remote, err)
				return
			}
		}
	}
}

func runUDP(port int) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		log.Fatalf("dmtp-refserver: listen: %v", err)
	}
	log.Printf("dmtp-refserver: listening on udp :%d", port)

	var mu sync.Mutex
	sessions := make(map[string]*session)

	buf := make([]byte, 4096)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			log.Printf("dmtp-refserver: read: %v", err)
			continue
		}
		remote := addr.String()

		mu.Lock()
		sess, ok := sessions[remote]
		if !ok {
			sess = &session{identity: remote}
			sessions[remote] = sess
		}
		mu.Unlock()

		packets, _, err := splitter.SplitPackets(append([]byte{}, buf[:n]...))
		if err != nil {
			log.Printf("[%s] resync: %v", remote, err)
			continue
		}

		responses := processBlock(sess, packets, remote)
		for _, r := range responses {
			if *verbose {
				log.Printf("[%s] TX: %s", remote, hex.EncodeToString(r))
			}
			if _, err := conn.WriteToUDP(r, addr); err != nil {
				log.Printf("[%s] write: %v", remote, err)
			}
		}
	}
}

// processBlock dispatches one read's worth of packets against sess,
// logging each one and returning the frames to send back. A block of
// events closed by EOB-Done earns exactly one ACK covering every event
// packet seen since the last EOB; identification, property-report, and
// error packets produce no reply of their own.
func processBlock(sess *session, packets [][]byte, remote string) [][]byte {
	enc := protocol.NewServerEncoder()
	var responses [][]byte
	eventCount := 0

	flush := func() {
		if eventCount == 0 {
			return
		}
		seq := sess.ackSeq(eventCount)
		responses = append(responses, enc.ACK(seq, 0))
		eventCount = 0
	}

	for _, raw := range packets {
		packetType, err := splitter.GetPacketType(raw)
		if err != nil {
			log.Printf("[%s] malformed packet: %v", remote, err)
			continue
		}
		payload, err := splitter.GetPayload(raw)
		if err != nil {
			log.Printf("[%s] malformed packet: %v", remote, err)
			continue
		}

		if *verbose {
			log.Printf("[%s] RX type=0x%04X payload=%s", remote, packetType, hex.EncodeToString(payload))
		}

		switch {
		case packetType == protocol.TypeUniqueID:
			sess.identity = hex.EncodeToString(payload)
			log.Printf("[%s] identified as unique id %s", remote, sess.identity)

		case packetType == protocol.TypeAccountID:
			sess.identity = "account:" + string(payload)
			log.Printf("[%s] identified account %s", remote, string(payload))

		case packetType == protocol.TypeDeviceID:
			log.Printf("[%s] device id %s", remote, string(payload))

		case packetType == protocol.TypePropertyReport:
			log.Printf("[%s] property report: %s", remote, hex.EncodeToString(payload))
			eventCount++

		case packetType == protocol.TypeError:
			log.Printf("[%s] client reported error 0x%04X", remote, be16(payload))

		case packetType == protocol.TypeEOBDone:
			flush()
			responses = append(responses, enc.EOB(false))

		case packetType == protocol.TypeEOBMore:
			flush()
			responses = append(responses, enc.EOB(true))

		case packetType >= protocol.TypeFormatBase && packetType < protocol.TypeFormatBase+0x100:
			log.Printf("[%s] event (format %d): %s", remote, packetType-protocol.TypeFormatBase, hex.EncodeToString(payload))
			eventCount++

		default:
			log.Printf("[%s] event (type 0x%04X): %s", remote, packetType, hex.EncodeToString(payload))
			eventCount++
		}
	}

	flush()
	return responses
}

func be16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return uint16(b[0])<<8 | uint16(b[1])
}
