package udp

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	scalarSize     = 4 // bytes per f32
	crcSize        = 2
	handshakeSize  = 7
)

// encodeDataFrame packs values as little-endian f32 followed by a
// 2-byte little-endian CRC-16/CCITT-FALSE over those bytes.
func encodeDataFrame(values []float32) []byte {
	payloadLen := len(values) * scalarSize
	buf := make([]byte, payloadLen+crcSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*scalarSize:], math.Float32bits(v))
	}
	crc := crcChecksum(buf[:payloadLen])
	binary.LittleEndian.PutUint16(buf[payloadLen:], crc)
	return buf
}

// splitDatagram separates a received datagram into its payload and
// trailing CRC. The caller has already checked len(datagram) >= 2.
func splitDatagram(datagram []byte) (payload []byte, wireCRC uint16) {
	cut := len(datagram) - crcSize
	return datagram[:cut], binary.LittleEndian.Uint16(datagram[cut:])
}

// decodeFloats decodes a payload of exactly n*4 bytes into n
// little-endian f32 values. The caller has already validated the
// payload length against the expected shape.
func decodeFloats(payload []byte, n uint16) []float32 {
	values := make([]float32, n)
	for i := range values {
		bits := binary.LittleEndian.Uint32(payload[i*scalarSize:])
		values[i] = math.Float32frombits(bits)
	}
	return values
}

// handshakeFrame is the fixed 7-byte descriptor exchanged once per
// session: num_outputs (u16 LE), num_inputs (u16 LE), send_type (1
// byte tag), max_age (u16 LE seconds, truncated from the configured
// value). It carries no CRC.
type handshakeFrame struct {
	NumOutputs uint16
	NumInputs  uint16
	SendType   SendType
	MaxAge     uint16
}

func encodeHandshake(f handshakeFrame) []byte {
	buf := make([]byte, handshakeSize)
	binary.LittleEndian.PutUint16(buf[0:], f.NumOutputs)
	binary.LittleEndian.PutUint16(buf[2:], f.NumInputs)
	buf[4] = byte(f.SendType)
	binary.LittleEndian.PutUint16(buf[5:], f.MaxAge)
	return buf
}

func decodeHandshake(b []byte) (handshakeFrame, error) {
	if len(b) != handshakeSize {
		return handshakeFrame{}, fmt.Errorf("udp: handshake frame must be %d bytes, got %d", handshakeSize, len(b))
	}
	return handshakeFrame{
		NumOutputs: binary.LittleEndian.Uint16(b[0:]),
		NumInputs:  binary.LittleEndian.Uint16(b[2:]),
		SendType:   SendType(b[4]),
		MaxAge:     binary.LittleEndian.Uint16(b[5:]),
	}, nil
}

// truncatingMaxAge reproduces the source's truncating cast of a
// double-precision configured max age into a u16 seconds field.
// Values above 65535s silently wrap; this is preserved deliberately
// per the transport's design notes rather than "fixed", since the
// intended behavior above that bound was never documented upstream.
func truncatingMaxAge(seconds float64) uint16 {
	return uint16(uint64(seconds))
}
