package udp

import (
	"fmt"
	"net"
	"sync"
)

// cleanupByte is the single byte emitted by invokeCleanup. Its only
// meaning is "the UDP core has self-terminated"; what the owning
// service does about that is entirely up to the listener on the other
// end.
const cleanupByte byte = 0x01

// backChannel is a short-lived TCP client connected once at setup to
// a local listener on the configured tcp_port. Its sole job is to
// deliver cleanupByte when the session self-terminates.
type backChannel struct {
	mu   sync.Mutex
	conn net.Conn
}

func dialBackChannel(port int) (*backChannel, error) {
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("udp: failed to connect to cleanup listener on port %d: %w", port, err)
	}
	return &backChannel{conn: conn}, nil
}

// invokeCleanup sends exactly one byte. Whether or not the send
// succeeds, the caller's normal shutdown path proceeds unaffected.
func (b *backChannel) invokeCleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("udp: cleanup back-channel not connected")
	}
	_, err := b.conn.Write([]byte{cleanupByte})
	return err
}

func (b *backChannel) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
