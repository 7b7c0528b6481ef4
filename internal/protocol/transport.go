package protocol

import (
	"fmt"
	"net"
	"time"
)

// Transport abstracts the UDP and TCP sockets a session can run over.
// The engine opens the transport named by its caller for each session;
// there is no automatic switch from UDP to TCP.
type Transport interface {
	// Open dials addr, replacing any existing connection.
	Open(addr string, timeout time.Duration) error

	// Close releases the underlying socket.
	Close() error

	// Write sends a single framed packet.
	Write(data []byte) error

	// Read blocks until a packet (or, for TCP, a filled read buffer) is
	// available or deadline elapses.
	Read(deadline time.Duration) ([]byte, error)

	// ResetAddr drops the open connection so the next Open call re-
	// resolves addr. The engine does not call it: it opens a fresh
	// transport for every session.
	ResetAddr()

	// Name identifies the transport for logging ("udp" or "tcp").
	Name() string
}

// udpTransport sends and receives whole datagrams: DMTP packets never
// span more than one UDP read since there is no stream to split.
type udpTransport struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// NewUDPTransport returns an unopened UDP transport.
func NewUDPTransport() Transport {
	return &udpTransport{}
}

func (t *udpTransport) Name() string { return "udp" }

func (t *udpTransport) Open(addr string, timeout time.Duration) error {
	if t.conn != nil {
		return nil
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: resolve %q: %w", addr, err)
	}
	conn, err := net.DialTimeout("udp", raddr.String(), timeout)
	if err != nil {
		return fmt.Errorf("udp: dial %q: %w", addr, err)
	}
	t.conn = conn.(*net.UDPConn)
	t.addr = raddr
	return nil
}

func (t *udpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *udpTransport) Write(data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("udp: not open")
	}
	_, err := t.conn.Write(data)
	return err
}

func (t *udpTransport) Read(deadline time.Duration) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("udp: not open")
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return nil, err
	}
	buf := make([]byte, MaxPayloadSize+HeaderSize)
	n, err := t.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (t *udpTransport) ResetAddr() {
	t.Close()
	t.addr = nil
}

// tcpTransport carries a byte stream; callers must run reads through
// the splitter package to recover packet boundaries.
type tcpTransport struct {
	conn net.Conn
	buf  []byte
}

// NewTCPTransport returns an unopened TCP transport.
func NewTCPTransport() Transport {
	return &tcpTransport{}
}

func (t *tcpTransport) Name() string { return "tcp" }

func (t *tcpTransport) Open(addr string, timeout time.Duration) error {
	if t.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("tcp: dial %q: %w", addr, err)
	}
	t.conn = conn
	t.buf = nil
	return nil
}

func (t *tcpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *tcpTransport) Write(data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("tcp: not open")
	}
	_, err := t.conn.Write(data)
	return err
}

// Read returns any bytes re-queued by PushResidue followed by the newly
// read chunk; callers run it through splitter.SplitPackets to extract
// whole packets. The engine keeps the split residue itself rather than
// calling PushResidue.
func (t *tcpTransport) Read(deadline time.Duration) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("tcp: not open")
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return nil, err
	}
	chunk := make([]byte, 4096)
	n, err := t.conn.Read(chunk)
	if err != nil {
		return nil, err
	}
	t.buf = append(t.buf, chunk[:n]...)
	out := t.buf
	t.buf = nil
	return out, nil
}

// PushResidue re-queues bytes the splitter could not yet frame, so the
// next Read call sees them again.
func (t *tcpTransport) PushResidue(residue []byte) {
	t.buf = append(residue, t.buf...)
}

func (t *tcpTransport) ResetAddr() {
	t.Close()
	t.buf = nil
}
