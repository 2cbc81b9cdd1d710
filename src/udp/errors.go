package udp

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the session is
	// already running.
	ErrAlreadyRunning = errors.New("udp: session already running")
	// ErrNotSetUp is returned when an operation requires Setup to
	// have completed first.
	ErrNotSetUp = errors.New("udp: socket not set up")
	// ErrHandshakeNotPerformed is returned by Start when Handshake
	// has not completed successfully.
	ErrHandshakeNotPerformed = errors.New("udp: handshake has not been performed")
	// ErrHandshakeAlreadyPerformed is returned by a second call to
	// Handshake within the same session.
	ErrHandshakeAlreadyPerformed = errors.New("udp: handshake already performed")
	// ErrShapeMismatch is returned by Send when the given sequence
	// does not have exactly NumOutputs elements, or by Handshake when
	// the peer's advertised shape disagrees with ours.
	ErrShapeMismatch = errors.New("udp: shape mismatch")
	// ErrNoRemoteAddr is returned by Send before any peer address has
	// been established.
	ErrNoRemoteAddr = errors.New("udp: no remote address established")
)
