package udp

import "github.com/sigurn/crc16"

// crcTable is CRC-16/CCITT-FALSE: initial register 0xFFFF, polynomial
// 0x1021, no reflection, no final XOR. It is the exact two-byte trailer
// appended to every outgoing payload and validated against the last
// two bytes of every incoming datagram.
var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

func crcChecksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
