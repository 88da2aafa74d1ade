package modbus

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_MODBUS)

// Checksum computes the Modbus RTU CRC16 (poly 0xA001 reflected, init
// 0xFFFF) over b.
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}

// AppendChecksum appends the CRC16 of b to b, low byte first.
func AppendChecksum(b []byte) []byte {
	c := Checksum(b)
	return append(b, byte(c), byte(c>>8))
}

func checksumOK(frame []byte) bool {
	n := len(frame)
	if n < 4 {
		return false
	}
	got := uint16(frame[n-2]) | uint16(frame[n-1])<<8
	return Checksum(frame[:n-2]) == got
}
