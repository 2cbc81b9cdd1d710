package udp

import "testing"

func TestCRCKnownVector(t *testing.T) {
	// CRC-16/CCITT-FALSE of the ASCII bytes "123456789" is the
	// well-known check value 0x29B1.
	got := crcChecksum([]byte("123456789"))
	if got != 0x29B1 {
		t.Fatalf("crcChecksum(\"123456789\") = 0x%04X, want 0x29B1", got)
	}
}

func TestCRCAppendedSelfCheckIsConstant(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	crc := crcChecksum(payload)
	appended := append(append([]byte{}, payload...), byte(crc), byte(crc>>8))

	// Recomputing over payload+crc (little-endian) is not expected to
	// be zero for CCITT-FALSE (no final XOR / complement), but it is
	// deterministic and stable across repeated calls.
	first := crcChecksum(appended)
	second := crcChecksum(appended)
	if first != second {
		t.Fatalf("crcChecksum is not deterministic: %04X != %04X", first, second)
	}
}

func TestCRCDetectsSingleBitFlip(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x80, 0x3F} // 1.0f little-endian
	good := crcChecksum(payload)

	flipped := append([]byte{}, payload...)
	flipped[0] ^= 0x01
	bad := crcChecksum(flipped)

	if good == bad {
		t.Fatalf("single bit flip did not change CRC")
	}
}
