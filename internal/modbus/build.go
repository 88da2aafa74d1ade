package modbus

import "encoding/binary"

// BuildReadRequest encodes a coil or holding-register read request.
func BuildReadRequest(slave, function byte, start, count uint16) ([]byte, error) {
	if !plausibleSlave(slave) {
		return nil, ErrBadSlave
	}
	if function != FuncReadCoils && function != FuncReadHolding {
		return nil, ErrBadFunction
	}
	b := make([]byte, 0, requestFrameLen)
	b = append(b, slave, function)
	b = binary.BigEndian.AppendUint16(b, start)
	b = binary.BigEndian.AppendUint16(b, count)
	return AppendChecksum(b), nil
}

// BuildWriteSingle encodes a single-register write. A slave that
// accepts the write echoes the exact same bytes back onto the bus.
func BuildWriteSingle(slave byte, addr, value uint16) ([]byte, error) {
	if !plausibleSlave(slave) {
		return nil, ErrBadSlave
	}
	b := make([]byte, 0, writeFrameLen)
	b = append(b, slave, FuncWriteSingle)
	b = binary.BigEndian.AppendUint16(b, addr)
	b = binary.BigEndian.AppendUint16(b, value)
	return AppendChecksum(b), nil
}
