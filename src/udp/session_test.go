package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testCleanupListener is a bare loopback TCP acceptor standing in for
// the owning service's cleanup listener; it just counts bytes it
// receives so tests can assert on cleanup firing.
type testCleanupListener struct {
	ln   net.Listener
	port int
	recv chan byte
}

func newTestCleanupListener(t *testing.T) *testCleanupListener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	l := &testCleanupListener{ln: ln, port: ln.Addr().(*net.TCPAddr).Port, recv: make(chan byte, 8)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 1)
				for {
					n, err := conn.Read(buf)
					if n == 1 {
						l.recv <- buf[0]
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return l
}

func newTestPair(t *testing.T, serverInputs, serverOutputs, clientInputs, clientOutputs uint16, maxAge float64) (*Session, *Session, *testCleanupListener, *testCleanupListener, int) {
	cbA := newTestCleanupListener(t)
	cbB := newTestCleanupListener(t)

	a := New(Options{LocalMaxAge: maxAge, SendType: TypeF32, SocketTimeout: 0.2, TCPPort: cbA.port})
	b := New(Options{LocalMaxAge: maxAge, SendType: TypeF32, SocketTimeout: 0.2, TCPPort: cbB.port})

	require.NoError(t, a.Setup("", 0, serverInputs, serverOutputs, true))
	port := a.sock.conn.LocalAddr().(*net.UDPAddr).Port

	require.NoError(t, b.Setup("127.0.0.1", port, clientInputs, clientOutputs, false))

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	return a, b, cbA, cbB, port
}

func TestSymmetricMirrorSession(t *testing.T) {
	// A: server, num_inputs=0, num_outputs=3 (mirrors orientation out)
	// B: client, num_inputs=3, num_outputs=0 (receives the mirror)
	a, b, _, _, _ := newTestPair(t, 0, 3, 3, 0, 3)

	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	require.NoError(t, a.Send([]float32{1.0, -2.5, 0.25}))

	var got []float32
	require.Eventually(t, func() bool {
		v, ok := b.GetLatest()
		if !ok {
			return false
		}
		got = v
		return true
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, []float32{1.0, -2.5, 0.25}, got)

	_, ok := b.GetLatest()
	require.False(t, ok, "second immediate GetLatest must return nothing")

	status := b.GetStatus()
	require.Equal(t, uint64(1), status.PacketsReceived)
}

func TestCRCCorruptionIsCountedAndDropped(t *testing.T) {
	a, b, _, _, _ := newTestPair(t, 0, 3, 3, 0, 3)

	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	frame := encodeDataFrame([]float32{1.0, -2.5, 0.25})
	frame[0] ^= 0x01 // flip a bit in the payload before transmit
	require.NoError(t, a.sock.send(frame))

	require.Eventually(t, func() bool {
		return b.GetStatus().PacketsCorrupted == 1
	}, time.Second, 5*time.Millisecond)

	_, ok := b.GetLatest()
	require.False(t, ok)
	require.Equal(t, uint64(0), b.GetStatus().PacketsReceived)
}

func TestHandshakeShapeMismatchFailsBothSides(t *testing.T) {
	// A advertises (outputs=3, inputs=0); B advertises (outputs=2,
	// inputs=0) -- disagreement on A's expected inputs vs B's outputs.
	a, b, _, _, _ := newTestPair(t, 0, 3, 0, 2, 3)

	done := make(chan error, 1)
	go func() { done <- a.Handshake(1) }()
	errB := b.Handshake(1)
	errA := <-done

	require.Error(t, errA)
	require.Error(t, errB)
	require.False(t, a.handshakePerformed.Load())
	require.False(t, b.handshakePerformed.Load())
}

func TestFreshnessExpiry(t *testing.T) {
	a, b, _, _, _ := newTestPair(t, 0, 3, 3, 0, 1) // local_max_age = 1s on both

	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	require.NoError(t, a.Send([]float32{1.0, 2.0, 3.0}))

	require.Eventually(t, func() bool {
		return b.GetStatus().PacketsReceived == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(1500 * time.Millisecond)

	_, ok := b.GetLatest()
	require.False(t, ok)
	require.Equal(t, uint64(1), b.GetStatus().PacketsExpired)
}

func TestWatchdogTripsCleanupAfterSilence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 5s watchdog threshold test in -short mode")
	}
	// A: server, num_inputs=0 -> no watchdog for A.
	// B: client, num_inputs=3, local_max_age=1s -> cleanup threshold
	// is max(3*1, 5) = 5s.
	a, b, cbA, cbB, _ := newTestPair(t, 0, 3, 3, 0, 1)

	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	// Deliver nothing from A's side; only B's watchdog should fire.

	select {
	case <-cbB.recv:
	case <-time.After(7 * time.Second):
		t.Fatal("B's watchdog did not invoke cleanup in time")
	}

	select {
	case <-cbA.recv:
		t.Fatal("A has num_inputs=0 and must never run a watchdog")
	default:
	}

	require.NoError(t, b.Close())
}

func TestSendShapeMismatchDoesNotIncrementCounter(t *testing.T) {
	a, b, _, _, _ := newTestPair(t, 0, 3, 3, 0, 3)
	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)
	require.NoError(t, a.Start())

	err := a.Send([]float32{1.0, 2.0})
	require.ErrorIs(t, err, ErrShapeMismatch)
	require.Equal(t, uint64(0), a.GetStatus().PacketsSent)
}

func TestZeroOutputSendAlwaysFails(t *testing.T) {
	a, b, _, _, _ := newTestPair(t, 3, 0, 0, 3, 3)
	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)
	require.NoError(t, a.Start())

	err := a.Send(nil)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, _, _, _, _ := newTestPair(t, 0, 3, 3, 0, 3)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestCloseBeforeStartStillReleasesResources(t *testing.T) {
	cb := newTestCleanupListener(t)
	s := New(Options{LocalMaxAge: 1, SendType: TypeF32, SocketTimeout: 0.2, TCPPort: cb.port})
	require.NoError(t, s.Setup("", 0, 0, 0, true))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestHandshakeRejectsSecondCall(t *testing.T) {
	a, b, _, _, _ := newTestPair(t, 0, 3, 3, 0, 3)
	done := make(chan error, 1)
	go func() { done <- a.Handshake(2) }()
	require.NoError(t, b.Handshake(2))
	require.NoError(t, <-done)

	require.ErrorIs(t, a.Handshake(2), ErrHandshakeAlreadyPerformed)
}
