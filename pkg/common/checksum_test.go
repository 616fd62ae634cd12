package common

import (
	"encoding/binary"
	"testing"
)

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0xFFFF,
		},
		{
			name: "single zero word",
			data: []byte{0x00, 0x00},
			want: 0xFFFF,
		},
		{
			name: "RFC 1071 example",
			data: []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7},
			want: ^uint16(0xddf2),
		},
		{
			name: "odd length pads with zero",
			data: []byte{0x12, 0x34, 0x56},
			want: ^uint16(0x1234 + 0x5600),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateChecksum(tt.data)
			if got != tt.want {
				t.Errorf("CalculateChecksum() = 0x%04x, want 0x%04x", got, tt.want)
			}
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	// Build a pseudo-header-free IGMP-style 8-byte message and insert its
	// checksum, then verify the whole thing sums to a valid value.
	data := []byte{0x16, 0x00, 0x00, 0x00, 224, 0, 0, 5}
	sum := CalculateChecksum(data)
	binary.BigEndian.PutUint16(data[2:4], sum)

	if !VerifyChecksum(data) {
		t.Errorf("VerifyChecksum() = false for data with embedded checksum, want true")
	}

	// Corrupt one byte; verification must fail.
	data[7] ^= 0xFF
	if VerifyChecksum(data) {
		t.Error("VerifyChecksum() = true for corrupted data, want false")
	}
}

func TestChecksumCarryFold(t *testing.T) {
	// Enough 0xFFFF words to force carries beyond 16 bits.
	data := make([]byte, 64)
	for i := range data {
		data[i] = 0xFF
	}
	got := CalculateChecksum(data)
	if got != 0x0000 {
		t.Errorf("CalculateChecksum(all 0xFF) = 0x%04x, want 0x0000", got)
	}
}
