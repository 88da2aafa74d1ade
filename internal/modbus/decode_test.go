package modbus

import (
	"errors"
	"testing"
)

func TestDecode_ReadRequest(t *testing.T) {
	raw := []byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}
	fr, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fr.Slave != 1 || fr.Function != FuncReadHolding || fr.Kind != KindReadRequest {
		t.Fatalf("unexpected frame: %+v", fr)
	}
	start, count, err := fr.ReadParams()
	if err != nil {
		t.Fatalf("ReadParams: %v", err)
	}
	if start != 165 || count != 20 {
		t.Fatalf("got start=%d count=%d", start, count)
	}
}

func TestDecode_ReadResponseWords(t *testing.T) {
	raw := []byte{0x02, 0x03, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0xD7, 0x01, 0xC2, 0xAA, 0xAA}
	fr, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fr.Kind != KindReadResponse {
		t.Fatalf("unexpected kind: %v", fr.Kind)
	}
	words, err := fr.Words()
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	want := []uint16{0, 0, 215, 450}
	if len(words) != len(want) {
		t.Fatalf("got %d words", len(words))
	}
	for i, w := range want {
		if words[i] != w {
			t.Fatalf("word[%d]=%d want %d", i, words[i], w)
		}
	}
}

func TestDecode_WriteSingle(t *testing.T) {
	raw := []byte{0x02, 0x06, 0x00, 0x90, 0x00, 0xD7, 0xC9, 0x8A}
	fr, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fr.Kind != KindWriteSingle {
		t.Fatalf("unexpected kind: %v", fr.Kind)
	}
	addr, value, err := fr.WriteParams()
	if err != nil {
		t.Fatalf("WriteParams: %v", err)
	}
	if addr != 144 || value != 215 {
		t.Fatalf("got addr=%d value=%d", addr, value)
	}
}

func TestDecode_CoilBits(t *testing.T) {
	raw := []byte{0x01, 0x01, 0x05, 0xAA, 0x55, 0xFF, 0x00, 0x01, 0x69, 0x76}
	fr, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bits, err := fr.Bits()
	if err != nil {
		t.Fatalf("Bits: %v", err)
	}
	if len(bits) != 40 {
		t.Fatalf("got %d bits", len(bits))
	}
	// 0xAA unpacks LSB first: off, on, off, on...
	for i := 0; i < 8; i++ {
		want := i%2 == 1
		if bits[i] != want {
			t.Fatalf("bit[%d]=%v want %v", i, bits[i], want)
		}
	}
	if !bits[8] || bits[9] {
		t.Fatalf("second byte not LSB first: %v", bits[8:16])
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := []byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}
	corrupt := append([]byte(nil), valid...)
	corrupt[7] ^= 0xFF

	cases := []struct {
		name string
		raw  []byte
		want error
	}{
		{"short", valid[:5], ErrShortFrame},
		{"slave-zero", []byte{0x00, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}, ErrBadSlave},
		{"slave-broadcast-high", []byte{0xF8, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}, ErrBadSlave},
		{"unknown-function", []byte{0x01, 0x10, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}, ErrBadFunction},
		{"shape", []byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55}, ErrBadShape},
		{"crc", corrupt, ErrBadChecksum},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.raw); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.want)
		}
	}
}

func TestDecode_CopiesPayload(t *testing.T) {
	raw := []byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6}
	fr, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw[3] = 0xFF
	if fr.Payload[1] != 0xA5 {
		t.Fatalf("payload aliases caller buffer")
	}
}

func TestSigned(t *testing.T) {
	cases := []struct {
		raw  uint16
		want int16
	}{
		{0, 0},
		{215, 215},
		{32767, 32767},
		{32768, -32768},
		{65535, -1},
		{65486, -50},
	}
	for _, tc := range cases {
		if got := Signed(tc.raw); got != tc.want {
			t.Fatalf("Signed(%d)=%d want %d", tc.raw, got, tc.want)
		}
	}
}

func TestKindAccessors_Mismatch(t *testing.T) {
	req, err := Decode([]byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14, 0x55, 0xE6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := req.Words(); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("Words on request: %v", err)
	}
	if _, _, err := req.WriteParams(); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("WriteParams on request: %v", err)
	}
	if _, err := req.Bits(); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("Bits on request: %v", err)
	}
}
