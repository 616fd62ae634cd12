// Package ip implements the IPv4 header handling needed by the stack's
// protocol engines, as defined in RFC 791.
package ip

import (
	"encoding/binary"
	"fmt"

	"github.com/mcastlabs/netstack/pkg/common"
)

const (
	// Version is the version number for IPv4.
	Version = 4

	// HeaderSize is the option-less IPv4 header length (20 bytes).
	HeaderSize = 20

	// VersionIHL is the first header byte for an option-less IPv4 header:
	// version 4, header length 5 words.
	VersionIHL = 0x45
)

// Flags represents the flag bits in the IPv4 header.
type Flags uint8

const (
	// FlagDontFragment indicates that the packet should not be fragmented.
	FlagDontFragment Flags = 1 << 1

	// FlagMoreFragments indicates that more fragments follow.
	FlagMoreFragments Flags = 1 << 0
)

// Header holds the fields of an option-less IPv4 header.
type Header struct {
	DSCP           uint8
	TotalLength    uint16
	Identification uint16
	Flags          Flags
	FragmentOffset uint16
	TTL            uint8
	Protocol       common.Protocol
	Checksum       uint16
	Source         common.IPv4Address
	Destination    common.IPv4Address
}

// Encode writes the 20-byte header into b. When withChecksum is false the
// checksum field is left zero for hardware that computes it on transmit;
// otherwise the RFC 1071 header checksum is filled in.
func (h *Header) Encode(b []byte, withChecksum bool) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("buffer too short for IPv4 header: %d bytes", len(b))
	}

	b[0] = VersionIHL
	b[1] = h.DSCP << 2
	binary.BigEndian.PutUint16(b[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(b[4:6], h.Identification)
	binary.BigEndian.PutUint16(b[6:8], uint16(h.Flags)<<13|h.FragmentOffset&0x1FFF)
	b[8] = h.TTL
	b[9] = uint8(h.Protocol)
	binary.BigEndian.PutUint16(b[10:12], 0)
	copy(b[12:16], h.Source[:])
	copy(b[16:20], h.Destination[:])

	h.Checksum = 0
	if withChecksum {
		h.Checksum = common.CalculateChecksum(b[:HeaderSize])
		binary.BigEndian.PutUint16(b[10:12], h.Checksum)
	}
	return nil
}

// ParseHeader parses an option-less or option-bearing IPv4 header from data
// and returns the header plus the offset of the payload.
func ParseHeader(data []byte) (*Header, int, error) {
	if len(data) < HeaderSize {
		return nil, 0, fmt.Errorf("packet too short: %d bytes (minimum %d)", len(data), HeaderSize)
	}

	if data[0]>>4 != Version {
		return nil, 0, fmt.Errorf("invalid IP version: %d (expected %d)", data[0]>>4, Version)
	}
	ihl := int(data[0]&0x0F) * 4
	if ihl < HeaderSize {
		return nil, 0, fmt.Errorf("invalid IHL: %d bytes (minimum %d)", ihl, HeaderSize)
	}
	if len(data) < ihl {
		return nil, 0, fmt.Errorf("packet too short for header: %d bytes (expected %d)", len(data), ihl)
	}

	h := &Header{
		DSCP:           data[1] >> 2,
		TotalLength:    binary.BigEndian.Uint16(data[2:4]),
		Identification: binary.BigEndian.Uint16(data[4:6]),
		TTL:            data[8],
		Protocol:       common.Protocol(data[9]),
		Checksum:       binary.BigEndian.Uint16(data[10:12]),
	}
	flagsFragOffset := binary.BigEndian.Uint16(data[6:8])
	h.Flags = Flags(flagsFragOffset >> 13)
	h.FragmentOffset = flagsFragOffset & 0x1FFF
	copy(h.Source[:], data[12:16])
	copy(h.Destination[:], data[16:20])

	return h, ihl, nil
}
