package modbus

import "testing"

func TestChecksum_KnownVectors(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint16
	}{
		{"check-string", []byte("123456789"), 0x4B37},
		{"read-one-register", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 0x0A84},
		{"read-range-165", []byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14}, 0xE655},
		{"write-setpoint", []byte{0x02, 0x06, 0x00, 0x90, 0x00, 0xD7}, 0x8AC9},
	}
	for _, tc := range cases {
		if got := Checksum(tc.in); got != tc.want {
			t.Fatalf("%s: got 0x%04X want 0x%04X", tc.name, got, tc.want)
		}
	}
}

func TestAppendChecksum_LowByteFirst(t *testing.T) {
	out := AppendChecksum([]byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14})
	if len(out) != 8 {
		t.Fatalf("unexpected length: %d", len(out))
	}
	if out[6] != 0x55 || out[7] != 0xE6 {
		t.Fatalf("crc bytes not little-endian: % X", out[6:])
	}
}

func TestChecksumOK(t *testing.T) {
	frame := AppendChecksum([]byte{0x01, 0x03, 0x00, 0xA5, 0x00, 0x14})
	if !checksumOK(frame) {
		t.Fatalf("valid frame rejected")
	}
	frame[len(frame)-1] ^= 0xFF
	if checksumOK(frame) {
		t.Fatalf("corrupt frame accepted")
	}
	if checksumOK([]byte{0x01, 0x03}) {
		t.Fatalf("short input accepted")
	}
}
