package udp

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultHandshakeTimeout = 15.0 // seconds
	recvBufferSize          = 2048
	watchdogPollInterval    = 100 * time.Millisecond
	watchdogMinThreshold    = 5.0 // seconds
	drainInterval           = 150 * time.Millisecond
)

// nopLogger discards everything; used when Options.Logger is nil.
type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Session is a bidirectional, fixed-shape, CRC-protected UDP transport
// endpoint. It progresses through constructed -> setup -> handshake
// performed -> running -> closing -> closed, as described in the
// transport's lifecycle design. Exactly one receive goroutine and at
// most one heartbeat goroutine exist between Start and Close.
type Session struct {
	// immutable session parameters
	localMaxAge   float64
	sendType      SendType
	socketTimeout float64
	delayTracking bool
	debugEnabled  bool
	tcpPort       int
	log           Logger

	// negotiated parameters, fixed after a successful handshake
	numInputs    uint16
	numOutputs   uint16
	isServer     bool
	receiveType  SendType
	remoteMaxAge uint16

	sock *socket
	back *backChannel

	running            atomic.Bool
	stopRequested      atomic.Bool
	handshakePerformed atomic.Bool
	closed             atomic.Bool

	dataMu               sync.Mutex
	latestData           []float32
	consumed             bool
	lastPacketTime       time.Time
	packetsReceived      uint64
	packetsSent          uint64
	packetsExpired       uint64
	packetsCorrupted     uint64
	packetsShapeInvalid  uint64

	delay delayStats

	closeMu sync.Mutex
	wg      sync.WaitGroup
}

// New constructs a Session in the *constructed* lifecycle state. No
// I/O happens until Setup is called.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Session{
		localMaxAge:   opts.LocalMaxAge,
		sendType:      opts.SendType,
		socketTimeout: opts.SocketTimeout,
		delayTracking: opts.DelayTracking,
		debugEnabled:  opts.DebugEnabled,
		tcpPort:       opts.TCPPort,
		log:           logger,
	}
}

// Setup connects the cleanup back-channel and prepares the datagram
// socket: bound to INADDR_ANY when isServer, resolved against host
// when acting as a client. Setup fails outright if the back-channel
// cannot be reached, since the core refuses to run without a way to
// report self-termination.
func (s *Session) Setup(host string, port int, numInputs, numOutputs uint16, isServer bool) error {
	back, err := dialBackChannel(s.tcpPort)
	if err != nil {
		return err
	}
	s.log.Printf("udp: cleanup back-channel connected on port %d", s.tcpPort)

	s.numInputs = numInputs
	s.numOutputs = numOutputs
	s.isServer = isServer

	var sock *socket
	if isServer {
		sock, err = bindServerSocket(port)
	} else {
		sock, err = prepareClientSocket(host, port)
	}
	if err != nil {
		back.close()
		return err
	}
	if err := sock.setTimeout(s.socketTimeout); err != nil {
		s.log.Printf("udp: warning, failed to set initial socket timeout: %v", err)
	}

	s.sock = sock
	s.back = back
	return nil
}

// Handshake performs one round-trip exchanging each side's 7-byte
// descriptor. A client sends first and the source address of the
// reply becomes the authoritative remote address; a server receives
// first and replies to the source address of that datagram. Either
// role rejects a shape disagreement as fatal.
func (s *Session) Handshake(timeoutSeconds float64) error {
	if s.sock == nil {
		return ErrNotSetUp
	}
	if s.handshakePerformed.Load() {
		return ErrHandshakeAlreadyPerformed
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultHandshakeTimeout
	}

	ours := encodeHandshake(handshakeFrame{
		NumOutputs: s.numOutputs,
		NumInputs:  s.numInputs,
		SendType:   s.sendType,
		MaxAge:     truncatingMaxAge(s.localMaxAge),
	})

	if err := s.sock.setTimeout(timeoutSeconds); err != nil {
		return fmt.Errorf("udp: failed to set handshake timeout: %w", err)
	}

	var peerBuf []byte
	var peerAddr *net.UDPAddr
	var err error

	if s.isServer {
		s.log.Printf("udp: server waiting for handshake")
		peerBuf, peerAddr, err = s.recvExact(handshakeSize)
		if err != nil {
			return fmt.Errorf("udp: server handshake receive failed: %w", err)
		}
		s.sock.remoteAddr = peerAddr
		if sendErr := s.sock.send(ours); sendErr != nil {
			return fmt.Errorf("udp: server handshake reply failed: %w", sendErr)
		}
	} else {
		s.log.Printf("udp: client sending handshake to %s", s.sock.remoteAddr)
		if sendErr := s.sock.send(ours); sendErr != nil {
			return fmt.Errorf("udp: client handshake send failed: %w", sendErr)
		}
		peerBuf, peerAddr, err = s.recvExact(handshakeSize)
		if err != nil {
			return fmt.Errorf("udp: client handshake receive failed: %w", err)
		}
		s.sock.remoteAddr = peerAddr
	}

	if err := s.sock.setTimeout(s.socketTimeout); err != nil {
		s.log.Printf("udp: failed to restore normal receive timeout, continuing: %v", err)
	}

	peer, err := decodeHandshake(peerBuf)
	if err != nil {
		return err
	}
	if peer.NumInputs != s.numOutputs {
		return fmt.Errorf("%w: remote expects %d outputs, we provide %d", ErrShapeMismatch, peer.NumInputs, s.numOutputs)
	}
	if peer.NumOutputs != s.numInputs {
		return fmt.Errorf("%w: remote provides %d outputs, we expect %d", ErrShapeMismatch, peer.NumOutputs, s.numInputs)
	}

	s.receiveType = peer.SendType
	s.remoteMaxAge = peer.MaxAge
	s.handshakePerformed.Store(true)

	s.log.Printf("udp: handshake ok | remote outputs=%d inputs=%d type=%s max_age=%d | local outputs=%d inputs=%d max_age=%.1f",
		peer.NumOutputs, peer.NumInputs, s.receiveType, s.remoteMaxAge, s.numOutputs, s.numInputs, s.localMaxAge)
	return nil
}

// recvExact reads one datagram of exactly size bytes for the
// handshake exchange; anything else is a fatal handshake failure.
func (s *Session) recvExact(size int) ([]byte, *net.UDPAddr, error) {
	buf := make([]byte, recvBufferSize)
	n, addr, err := s.sock.recv(buf)
	if err != nil {
		return nil, nil, err
	}
	if n != size {
		return nil, nil, fmt.Errorf("expected %d bytes, got %d", size, n)
	}
	return buf[:n], addr, nil
}

// Start launches the receive goroutine and, when NumInputs > 0, the
// heartbeat watchdog goroutine. It requires a completed handshake.
func (s *Session) Start() error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}
	if s.sock == nil {
		return ErrNotSetUp
	}
	if !s.handshakePerformed.Load() {
		return ErrHandshakeNotPerformed
	}

	s.dataMu.Lock()
	s.lastPacketTime = time.Now()
	s.dataMu.Unlock()

	s.stopRequested.Store(false)
	s.running.Store(true)

	s.wg.Add(1)
	go s.receiveLoop()

	if s.numInputs > 0 {
		threshold := s.localMaxAge * 3.0
		if threshold < watchdogMinThreshold {
			threshold = watchdogMinThreshold
		}
		s.log.Printf("udp: heartbeat watchdog started, threshold=%.1fs", threshold)
		s.wg.Add(1)
		go s.watchdogLoop(threshold)
	}

	s.log.Printf("udp: session started")
	return nil
}

func (s *Session) receiveLoop() {
	defer s.wg.Done()
	buf := make([]byte, recvBufferSize)

	for !s.stopRequested.Load() {
		n, addr, err := s.sock.recv(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if s.stopRequested.Load() {
				return
			}
			s.log.Printf("udp: recvfrom failed: %v", err)
			s.invokeCleanup()
			return
		}

		if n < 2 {
			s.dataMu.Lock()
			s.packetsShapeInvalid++
			s.dataMu.Unlock()
			continue
		}

		if s.debugEnabled {
			s.log.Printf("udp: received %d bytes from %s", n, addr)
		}

		payload, wireCRC := splitDatagram(buf[:n])
		if crcChecksum(payload) != wireCRC {
			s.dataMu.Lock()
			s.packetsCorrupted++
			s.dataMu.Unlock()
			continue
		}

		expected := int(s.numInputs) * scalarSize
		if len(payload) != expected {
			s.dataMu.Lock()
			s.packetsShapeInvalid++
			s.dataMu.Unlock()
			continue
		}

		values := decodeFloats(payload, s.numInputs)
		now := time.Now()

		s.dataMu.Lock()
		interval := now.Sub(s.lastPacketTime).Seconds()
		s.latestData = values
		s.consumed = false
		s.lastPacketTime = now
		s.packetsReceived++
		s.dataMu.Unlock()

		if s.delayTracking {
			s.delay.update(interval)
		}
	}
}

func (s *Session) watchdogLoop(cleanupThreshold float64) {
	defer s.wg.Done()
	for !s.stopRequested.Load() {
		time.Sleep(watchdogPollInterval)

		s.dataMu.Lock()
		last := s.lastPacketTime
		s.dataMu.Unlock()

		age := time.Since(last).Seconds()
		if age > cleanupThreshold {
			if !s.stopRequested.Load() {
				s.log.Printf("udp: data timeout, connection stale (age=%.1fs)", age)
				s.invokeCleanup()
			}
			return
		}
	}
}

func (s *Session) invokeCleanup() {
	if s.back == nil {
		s.log.Printf("udp: unable to invoke cleanup, back-channel is nil")
		return
	}
	if err := s.back.invokeCleanup(); err != nil {
		s.log.Printf("udp: cleanup back-channel send failed: %v", err)
	}
}

// Send transmits values as a data frame to the negotiated remote
// address. It requires NumOutputs > 0 and len(values) == NumOutputs;
// a session configured with zero outputs always fails with
// ErrShapeMismatch.
func (s *Session) Send(values []float32) error {
	if s.sock == nil {
		return ErrNotSetUp
	}
	if s.sock.remoteAddr == nil {
		return ErrNoRemoteAddr
	}
	if s.numOutputs == 0 || int(s.numOutputs) != len(values) {
		return fmt.Errorf("%w: expected %d values, got %d", ErrShapeMismatch, s.numOutputs, len(values))
	}

	frame := encodeDataFrame(values)
	if err := s.sock.send(frame); err != nil {
		return fmt.Errorf("udp: sendto failed: %w", err)
	}

	s.dataMu.Lock()
	s.packetsSent++
	s.dataMu.Unlock()
	return nil
}

// GetLatest returns the most recently received, unconsumed, fresh
// payload. It returns ok=false when there is nothing unconsumed or
// the payload's age exceeds LocalMaxAge; expiry is counted into
// PacketsExpired.
func (s *Session) GetLatest() (values []float32, ok bool) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	if len(s.latestData) == 0 || s.consumed {
		return nil, false
	}

	age := time.Since(s.lastPacketTime).Seconds()
	if age > s.localMaxAge {
		s.packetsExpired++
		return nil, false
	}

	s.consumed = true
	out := make([]float32, len(s.latestData))
	copy(out, s.latestData)
	return out, true
}

// GetStatus returns an immutable snapshot of counters, freshness, and
// negotiated parameters.
func (s *Session) GetStatus() Status {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()

	var sinceLast *time.Duration
	if !s.lastPacketTime.IsZero() {
		d := time.Since(s.lastPacketTime)
		sinceLast = &d
	}

	return Status{
		Running:             s.running.Load(),
		PacketsReceived:     s.packetsReceived,
		PacketsSent:         s.packetsSent,
		PacketsExpired:      s.packetsExpired,
		PacketsCorrupted:    s.packetsCorrupted,
		PacketsShapeInvalid: s.packetsShapeInvalid,
		SinceLastPacket:     sinceLast,
		HasUnconsumedData:   len(s.latestData) > 0 && !s.consumed,
		ReceiveType:         s.receiveType,
		SendType:            s.sendType,
		NumInputs:           s.numInputs,
		NumOutputs:          s.numOutputs,
		HandshakePerformed:  s.handshakePerformed.Load(),
		RemoteMaxAge:        s.remoteMaxAge,
	}
}

// DelayStats returns the current inter-arrival Welford statistics.
// Meaningless (zero Count) unless DelayTracking was enabled.
func (s *Session) DelayStats() DelaySnapshot {
	return s.delay.snapshot()
}

func (s *Session) socketTimeoutDuration() time.Duration {
	if s.socketTimeout <= 0 {
		return 0
	}
	return time.Duration(s.socketTimeout * float64(time.Second))
}

// GetExpectedRecvPacketSize returns the exact size, in bytes, of a
// well-formed incoming datagram for this session's negotiated shape.
func (s *Session) GetExpectedRecvPacketSize() int {
	return int(s.numInputs)*scalarSize + crcSize
}

// Close stops background activity, releases the socket and
// back-channel, and transitions to *closed*. It is idempotent and
// legal to call from any lifecycle state, including one where Start
// was never called.
func (s *Session) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	s.stopRequested.Store(true)
	wasRunning := s.running.Swap(false)
	s.handshakePerformed.Store(false)

	if s.sock != nil {
		if err := s.sock.close(); err != nil {
			s.log.Printf("udp: error closing socket: %v", err)
		}
	}

	if wasRunning {
		// Background goroutines discover cancellation via their own
		// timeout/sleep wakeups, not a direct join: give them a
		// bounded interval to drain before tearing down the
		// back-channel under them.
		drained := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(drainInterval + s.socketTimeoutDuration()):
		}
	}

	if s.back != nil {
		if err := s.back.close(); err != nil {
			s.log.Printf("udp: error closing back-channel: %v", err)
		}
	}

	s.closed.Store(true)
	s.log.Printf("udp: session closed")
	return nil
}
