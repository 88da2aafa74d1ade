// Package modbus implements the subset of Modbus RTU spoken on the RDZ
// thermostat bus: coil reads, holding-register reads and single-register
// writes, observed as a raw byte stream behind an RS485-to-TCP bridge.
package modbus

// Function codes observed on the bus.
const (
	FuncReadCoils   = 0x01
	FuncReadHolding = 0x03
	FuncWriteSingle = 0x06
)

const (
	minSlave = 1
	maxSlave = 247

	// MaxFrameLen is the RTU ADU ceiling. No candidate frame can be
	// longer, so a buffer past this size with no valid frame at its
	// head is guaranteed garbage.
	MaxFrameLen = 256

	minFrameLen     = 6 // shortest valid shape: coil response with one data byte
	requestFrameLen = 8
	writeFrameLen   = 8
	maxByteCount    = 250
)

// Kind classifies a decoded frame by shape. Write requests and write
// echoes are byte-identical on the wire and share one kind.
type Kind uint8

const (
	KindReadRequest Kind = iota + 1
	KindReadResponse
	KindWriteSingle
)

func (k Kind) String() string {
	switch k {
	case KindReadRequest:
		return "read_request"
	case KindReadResponse:
		return "read_response"
	case KindWriteSingle:
		return "write_single"
	}
	return "unknown"
}

// Frame is one validated RTU frame.
// Layout: slave[1] | function[1] | payload[..] | crcLE[2].
// RTU carries no length field; the payload shape is implied by the
// function code and, for read responses, the leading byte count.
type Frame struct {
	Slave    byte
	Function byte
	Kind     Kind
	Payload  []byte
}

func plausibleSlave(b byte) bool {
	return b >= minSlave && b <= maxSlave
}

func knownFunction(b byte) bool {
	return b == FuncReadCoils || b == FuncReadHolding || b == FuncWriteSingle
}

// responseLen maps a read-response byte count to the full frame length.
// Holding-register responses carry whole words, so odd counts are
// implausible there.
func responseLen(function, byteCount byte) (int, bool) {
	n := int(byteCount)
	if n < 1 || n > maxByteCount {
		return 0, false
	}
	if function == FuncReadHolding && n%2 != 0 {
		return 0, false
	}
	return n + 5, true
}
