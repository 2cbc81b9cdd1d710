package udp

import (
	"fmt"
	"net"
	"time"
)

// socket is the platform-neutral datagram endpoint: bind for server
// mode, resolve for client mode, a timed receive, and an unconnected
// send to a remembered peer address.
type socket struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr
	isServer   bool
	timeout    time.Duration
}

func bindServerSocket(port int) (*socket, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: bind failed on port %d: %w", port, err)
	}
	return &socket{conn: conn, isServer: true}, nil
}

// prepareClientSocket resolves host (numeric address first, DNS
// lookup as fallback via net.ResolveUDPAddr) and opens an unconnected
// local socket on an ephemeral port, recording remoteAddr for later
// sends.
func prepareClientSocket(host string, port int) (*socket, error) {
	remote, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("udp: failed to resolve host %q: %w", host, err)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("udp: socket creation failed: %w", err)
	}
	return &socket{conn: conn, remoteAddr: remote, isServer: false}, nil
}

func (s *socket) setTimeout(seconds float64) error {
	if s.conn == nil {
		return fmt.Errorf("udp: cannot set timeout, socket not initialized")
	}
	if seconds <= 0 {
		s.timeout = 0
		return s.conn.SetReadDeadline(time.Time{})
	}
	s.timeout = time.Duration(seconds * float64(time.Second))
	return s.conn.SetReadDeadline(time.Now().Add(s.timeout))
}

// recv reads one datagram into buf, returning the number of bytes and
// the source address. Each call waits at most the configured timeout;
// timeouts surface as a net.Error with Timeout() true; callers poll on
// that for cancellation.
func (s *socket) recv(buf []byte) (int, *net.UDPAddr, error) {
	if s.timeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return 0, nil, err
		}
	}
	n, addr, err := s.conn.ReadFromUDP(buf)
	return n, addr, err
}

// send transmits data to remoteAddr. The socket is unconnected: every
// send targets the currently remembered peer address.
func (s *socket) send(data []byte) error {
	if s.remoteAddr == nil {
		return fmt.Errorf("udp: no remote address set")
	}
	_, err := s.conn.WriteToUDP(data, s.remoteAddr)
	return err
}

func (s *socket) close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
