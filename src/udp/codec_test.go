package udp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataFrameRoundTrip(t *testing.T) {
	values := []float32{1.0, -2.5, 0.25, 0.0, 123456.75}
	frame := encodeDataFrame(values)

	require.Equal(t, len(values)*scalarSize+crcSize, len(frame))

	payload, wireCRC := splitDatagram(frame)
	require.Equal(t, crcChecksum(payload), wireCRC)

	decoded := decodeFloats(payload, uint16(len(values)))
	assert.Equal(t, values, decoded)
}

func TestDataFramePreservesNaNBits(t *testing.T) {
	nan := math.Float32frombits(0x7FC00001)
	frame := encodeDataFrame([]float32{nan})
	payload, _ := splitDatagram(frame)
	decoded := decodeFloats(payload, 1)

	require.Equal(t, math.Float32bits(nan), math.Float32bits(decoded[0]))
}

func TestHandshakeRoundTrip(t *testing.T) {
	f := handshakeFrame{NumOutputs: 3, NumInputs: 0, SendType: TypeF32, MaxAge: 3}
	buf := encodeHandshake(f)
	require.Len(t, buf, handshakeSize)

	decoded, err := decodeHandshake(buf)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestHandshakeDecodeRejectsWrongSize(t *testing.T) {
	_, err := decodeHandshake(make([]byte, 6))
	require.Error(t, err)

	_, err = decodeHandshake(make([]byte, 8))
	require.Error(t, err)
}

func TestTruncatingMaxAgeWrapsAbove65535(t *testing.T) {
	assert.Equal(t, uint16(3), truncatingMaxAge(3.0))
	assert.Equal(t, uint16(65535), truncatingMaxAge(65535.9))
	// 65536 wraps to 0, matching the preserved truncating-cast
	// behavior documented as an open question upstream.
	assert.Equal(t, uint16(0), truncatingMaxAge(65536.0))
}
