package gps

import (
	"bufio"
	"fmt"
	"io"
	"net"

	serial "github.com/jacobsa/go-serial/serial"
)

// Source supplies raw NMEA sentence lines, abstracting over a local
// serial GPS receiver and a remote gps_publisher socket feed.
type Source interface {
	// Open readies the source for reading.
	Open() error

	// ReadSentence blocks for the next complete NMEA line (without its
	// trailing CRLF).
	ReadSentence() (string, error)

	// Close releases the underlying port or connection.
	Close() error
}

// Initializer is implemented by Sources that accept a cold-start
// initialization message (last known position, altitude, week number,
// and time-of-week) when power-saving reopens the port. A Source that
// does not implement it is simply left to cold-start on its own.
type Initializer interface {
	SendInit(data []byte) error
}

// SerialSource reads NMEA sentences from a local serial GPS receiver,
// configured from CFG_GPS_PORT/CFG_GPS_BPS.
type SerialSource struct {
	PortName string
	BaudRate uint

	port io.ReadWriteCloser
	r    *bufio.Reader
}

// NewSerialSource returns an unopened serial source.
func NewSerialSource(portName string, baudRate uint) *SerialSource {
	return &SerialSource{PortName: portName, BaudRate: baudRate}
}

func (s *SerialSource) Open() error {
	opts := serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              s.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return fmt.Errorf("gps: open serial port %s: %w", s.PortName, err)
	}
	s.port = port
	s.r = bufio.NewReader(port)
	return nil
}

func (s *SerialSource) ReadSentence() (string, error) {
	if s.r == nil {
		return "", fmt.Errorf("gps: serial source not open")
	}
	return readTrimmedLine(s.r)
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// SendInit writes data straight to the serial port, letting a receiver
// that understands a proprietary cold-start message consume it.
func (s *SerialSource) SendInit(data []byte) error {
	if s.port == nil {
		return fmt.Errorf("gps: serial source not open")
	}
	_, err := s.port.Write(data)
	return err
}

// SocketSource reads NMEA sentences published over UDP by an external
// gps_publisher process, an alternative to owning the serial port
// directly.
type SocketSource struct {
	Addr string

	conn *net.UDPConn
}

// NewSocketSource returns an unopened socket source listening on addr.
func NewSocketSource(addr string) *SocketSource {
	return &SocketSource{Addr: addr}
}

func (s *SocketSource) Open() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return fmt.Errorf("gps: resolve %s: %w", s.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("gps: listen %s: %w", s.Addr, err)
	}
	s.conn = conn
	return nil
}

func (s *SocketSource) ReadSentence() (string, error) {
	if s.conn == nil {
		return "", fmt.Errorf("gps: socket source not open")
	}
	buf := make([]byte, 512)
	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return "", err
	}
	return trimLine(string(buf[:n])), nil
}

func (s *SocketSource) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func readTrimmedLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimLine(line), nil
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
