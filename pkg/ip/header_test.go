package ip

import (
	"encoding/binary"
	"testing"

	"github.com/mcastlabs/netstack/pkg/common"
)

func testHeader() *Header {
	return &Header{
		TotalLength:    28,
		Identification: 0x1234,
		Flags:          FlagDontFragment,
		TTL:            1,
		Protocol:       common.ProtocolIGMP,
		Source:         common.IPv4Address{192, 168, 1, 50},
		Destination:    common.IPv4Address{224, 0, 0, 5},
	}
}

func TestHeaderEncodeParseRoundTrip(t *testing.T) {
	h := testHeader()
	buf := make([]byte, HeaderSize)
	if err := h.Encode(buf, true); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	parsed, payloadOff, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if payloadOff != HeaderSize {
		t.Errorf("payload offset = %d, want %d", payloadOff, HeaderSize)
	}
	if parsed.TotalLength != 28 {
		t.Errorf("TotalLength = %d, want 28", parsed.TotalLength)
	}
	if parsed.Identification != 0x1234 {
		t.Errorf("Identification = 0x%04x, want 0x1234", parsed.Identification)
	}
	if parsed.Flags != FlagDontFragment {
		t.Errorf("Flags = %d, want DontFragment", parsed.Flags)
	}
	if parsed.FragmentOffset != 0 {
		t.Errorf("FragmentOffset = %d, want 0", parsed.FragmentOffset)
	}
	if parsed.TTL != 1 {
		t.Errorf("TTL = %d, want 1", parsed.TTL)
	}
	if parsed.Protocol != common.ProtocolIGMP {
		t.Errorf("Protocol = %s, want IGMP", parsed.Protocol)
	}
	if parsed.Source != h.Source || parsed.Destination != h.Destination {
		t.Errorf("addresses = %s -> %s, want %s -> %s",
			parsed.Source, parsed.Destination, h.Source, h.Destination)
	}
}

func TestHeaderEncodeChecksum(t *testing.T) {
	h := testHeader()
	buf := make([]byte, HeaderSize)
	if err := h.Encode(buf, true); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if h.Checksum == 0 {
		t.Error("Checksum = 0 after Encode with checksum, want nonzero")
	}
	if !common.VerifyChecksum(buf) {
		t.Error("VerifyChecksum() = false for encoded header, want true")
	}
}

func TestHeaderEncodeChecksumOffload(t *testing.T) {
	h := testHeader()
	buf := make([]byte, HeaderSize)
	if err := h.Encode(buf, false); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Hardware checksum offload: the field stays zero for the NIC to fill.
	if got := binary.BigEndian.Uint16(buf[10:12]); got != 0 {
		t.Errorf("checksum field = 0x%04x with offload, want 0x0000", got)
	}
}

func TestHeaderEncodeShortBuffer(t *testing.T) {
	h := testHeader()
	if err := h.Encode(make([]byte, HeaderSize-1), true); err == nil {
		t.Error("Encode(short buffer) error = nil, want error")
	}
}

func TestParseHeaderErrors(t *testing.T) {
	if _, _, err := ParseHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Error("ParseHeader(short) error = nil, want error")
	}

	buf := make([]byte, HeaderSize)
	buf[0] = 0x65 // IPv6 version nibble
	if _, _, err := ParseHeader(buf); err == nil {
		t.Error("ParseHeader(wrong version) error = nil, want error")
	}

	buf[0] = 0x41 // IHL of 1 word
	if _, _, err := ParseHeader(buf); err == nil {
		t.Error("ParseHeader(bad IHL) error = nil, want error")
	}

	buf[0] = 0x4F // IHL of 15 words, longer than the buffer
	if _, _, err := ParseHeader(buf); err == nil {
		t.Error("ParseHeader(truncated options) error = nil, want error")
	}
}

func TestParseHeaderWithOptions(t *testing.T) {
	buf := make([]byte, 24)
	buf[0] = 0x46 // IHL of 6 words
	buf[9] = uint8(common.ProtocolIGMP)

	_, payloadOff, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if payloadOff != 24 {
		t.Errorf("payload offset = %d, want 24", payloadOff)
	}
}
