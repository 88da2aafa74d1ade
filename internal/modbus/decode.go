package modbus

import (
	"encoding/binary"
	"errors"
)

var (
	ErrShortFrame   = errors.New("short frame")
	ErrBadChecksum  = errors.New("bad checksum")
	ErrBadSlave     = errors.New("slave id out of range")
	ErrBadFunction  = errors.New("unsupported function code")
	ErrBadShape     = errors.New("frame shape mismatch")
	ErrKindMismatch = errors.New("frame kind mismatch")
)

// Decode validates raw as exactly one complete frame: plausible header,
// shape-consistent length, trailing CRC16. The payload is copied out of
// raw so callers may reuse the input buffer.
func Decode(raw []byte) (Frame, error) {
	if len(raw) < minFrameLen {
		return Frame{}, ErrShortFrame
	}
	if !plausibleSlave(raw[0]) {
		return Frame{}, ErrBadSlave
	}
	if !knownFunction(raw[1]) {
		return Frame{}, ErrBadFunction
	}
	kind, ok := classify(raw[1], len(raw), raw[2])
	if !ok {
		return Frame{}, ErrBadShape
	}
	if !checksumOK(raw) {
		return Frame{}, ErrBadChecksum
	}
	payload := make([]byte, len(raw)-4)
	copy(payload, raw[2:len(raw)-2])
	return Frame{
		Slave:    raw[0],
		Function: raw[1],
		Kind:     kind,
		Payload:  payload,
	}, nil
}

// classify resolves frame length to a shape. An 8-byte read frame is
// always taken as a request: a coil response with byte count 3 has the
// same length and is indistinguishable on the wire, and the correlator
// would reject it anyway because no monitored coil block is that small.
func classify(function byte, frameLen int, byteCount byte) (Kind, bool) {
	switch function {
	case FuncWriteSingle:
		if frameLen == writeFrameLen {
			return KindWriteSingle, true
		}
	case FuncReadCoils, FuncReadHolding:
		if frameLen == requestFrameLen {
			return KindReadRequest, true
		}
		if n, ok := responseLen(function, byteCount); ok && n == frameLen {
			return KindReadResponse, true
		}
	}
	return 0, false
}

// ReadParams returns the start address and item count of a read request.
func (f Frame) ReadParams() (start, count uint16, err error) {
	if f.Kind != KindReadRequest || len(f.Payload) != 4 {
		return 0, 0, ErrKindMismatch
	}
	return binary.BigEndian.Uint16(f.Payload[0:2]), binary.BigEndian.Uint16(f.Payload[2:4]), nil
}

// WriteParams returns the register address and value of a write-single
// frame. Request and echo share the layout.
func (f Frame) WriteParams() (addr, value uint16, err error) {
	if f.Kind != KindWriteSingle || len(f.Payload) != 4 {
		return 0, 0, ErrKindMismatch
	}
	return binary.BigEndian.Uint16(f.Payload[0:2]), binary.BigEndian.Uint16(f.Payload[2:4]), nil
}

// ByteCount returns the data byte count of a read response.
func (f Frame) ByteCount() (int, error) {
	if f.Kind != KindReadResponse || len(f.Payload) < 1 {
		return 0, ErrKindMismatch
	}
	return int(f.Payload[0]), nil
}

// Words decodes a holding-register response into raw big-endian words.
func (f Frame) Words() ([]uint16, error) {
	if f.Kind != KindReadResponse || f.Function != FuncReadHolding {
		return nil, ErrKindMismatch
	}
	data := f.Payload[1:]
	words := make([]uint16, len(data)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(data[2*i:])
	}
	return words, nil
}

// Bits decodes a coil response, least significant bit first within each
// byte. The trailing pad bits beyond the requested coil count are
// returned as-is; callers truncate to the count they asked for.
func (f Frame) Bits() ([]bool, error) {
	if f.Kind != KindReadResponse || f.Function != FuncReadCoils {
		return nil, ErrKindMismatch
	}
	data := f.Payload[1:]
	bits := make([]bool, 0, len(data)*8)
	for _, b := range data {
		for i := 0; i < 8; i++ {
			bits = append(bits, b&(1<<i) != 0)
		}
	}
	return bits, nil
}

// Signed reinterprets a raw register word as two's complement, so
// 65486 reads as -50 and temperatures below zero survive decoding.
func Signed(raw uint16) int16 {
	return int16(raw)
}
