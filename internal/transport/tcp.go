package transport

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/venusplus/vpls/internal/codec"
	"github.com/venusplus/vpls/internal/wire"
)

// TCPTransport carries VPLS frames over a single TCP connection. It is
// not safe for concurrent Send calls or concurrent Receive calls — the
// ring layer above it already enforces the one-in-flight-reply rule
// (spec.md §5, "Transport exclusivity"); TCPTransport itself just moves
// bytes.
type TCPTransport struct {
	conn net.Conn
}

// DialTCP connects to addr, tunes the resulting socket the way the
// ring layer's latency budget expects (Nagle disabled, keepalive on),
// and performs the registry/wire-format version handshake described in
// spec.md §4.1 before returning.
func DialTCP(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	t, err := newTCPTransport(conn)
	if err != nil {
		return nil, err
	}
	if err := t.sendHandshake(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := t.recvHandshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return t, nil
}

// NewTCPTransport wraps an already-accepted connection, tuning it the
// same way DialTCP does and answering the client's version handshake.
func NewTCPTransport(conn net.Conn) (*TCPTransport, error) {
	t, err := newTCPTransport(conn)
	if err != nil {
		return nil, err
	}
	if err := t.recvHandshake(); err != nil {
		return nil, err
	}
	if err := t.sendHandshake(); err != nil {
		return nil, err
	}
	return t, nil
}

// sendHandshake writes this build's registry and wire-format versions
// as a single handshake frame.
func (t *TCPTransport) sendHandshake() error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], codec.RegistryVersion)
	binary.LittleEndian.PutUint32(buf[4:8], codec.WireFormatVersion)
	if err := wire.WriteFrame(t.conn, buf[:]); err != nil {
		return fmt.Errorf("transport: send handshake: %w", err)
	}
	return nil
}

// recvHandshake reads the peer's handshake frame and refuses the
// connection if either version disagrees with this build's own —
// spec.md §4.1 calls these constants "accessible for handshake"
// precisely so client and server can reject an incompatible peer
// before any command frame is exchanged.
func (t *TCPTransport) recvHandshake() error {
	frame, err := wire.ReadFrame(t.conn)
	if err != nil {
		return fmt.Errorf("transport: receive handshake: %w", err)
	}
	if len(frame) != 8 {
		return fmt.Errorf("transport: handshake frame has %d bytes, want 8", len(frame))
	}
	peerRegistry := binary.LittleEndian.Uint32(frame[0:4])
	peerWireFormat := binary.LittleEndian.Uint32(frame[4:8])
	if peerRegistry != codec.RegistryVersion {
		return fmt.Errorf("transport: peer registry version %d, want %d", peerRegistry, codec.RegistryVersion)
	}
	if peerWireFormat != codec.WireFormatVersion {
		return fmt.Errorf("transport: peer wire-format version %d, want %d", peerWireFormat, codec.WireFormatVersion)
	}
	return nil
}

func newTCPTransport(conn net.Conn) (*TCPTransport, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return &TCPTransport{conn: conn}, nil
	}

	// Small command frames must not wait out Nagle's algorithm.
	if err := tcpConn.SetNoDelay(true); err != nil {
		return nil, fmt.Errorf("transport: set no-delay: %w", err)
	}
	if err := tcpConn.SetKeepAlive(true); err != nil {
		return nil, fmt.Errorf("transport: set keepalive: %w", err)
	}
	if err := tuneBuffers(tcpConn); err != nil {
		return nil, fmt.Errorf("transport: tune buffers: %w", err)
	}
	return &TCPTransport{conn: tcpConn}, nil
}

// tuneBuffers widens the kernel socket buffers beyond net.TCPConn's own
// setters, which only expose SetReadBuffer/SetWriteBuffer in terms of
// requested bytes and silently clamp to the platform max; going through
// golang.org/x/sys/unix's SetsockoptInt lets us read back what the
// kernel actually granted if ever needed for diagnostics.
const socketBufferSize = 1 << 20 // 1 MiB

func tuneBuffers(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferSize); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferSize); e != nil {
			sockErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Send writes payload as a single VPLS frame.
func (t *TCPTransport) Send(payload []byte) error {
	return wire.WriteFrame(t.conn, payload)
}

// Receive reads a single VPLS frame.
func (t *TCPTransport) Receive() ([]byte, error) {
	return wire.ReadFrame(t.conn)
}

// Close closes the underlying connection.
func (t *TCPTransport) Close() error {
	return t.conn.Close()
}
