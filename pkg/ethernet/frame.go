// Package ethernet implements Ethernet frame handling for Layer 2 communication.
package ethernet

import (
	"encoding/binary"
	"fmt"

	"github.com/mcastlabs/netstack/pkg/common"
)

const (
	// HeaderSize is the size of an Ethernet header (14 bytes).
	HeaderSize = 14

	// MaxFrameSize is the maximum Ethernet frame size including FCS (1518 bytes).
	MaxFrameSize = 1518

	// MinPayloadSize is the minimum payload size (46 bytes).
	MinPayloadSize = 46
)

// Frame represents an Ethernet II frame.
type Frame struct {
	Destination common.MACAddress
	Source      common.MACAddress
	EtherType   common.EtherType
	Payload     []byte
}

// Parse parses an Ethernet frame from raw bytes. The FCS is not expected;
// raw socket captures do not include it.
func Parse(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("ethernet frame too short: %d bytes", len(data))
	}

	frame := &Frame{}
	copy(frame.Destination[:], data[0:6])
	copy(frame.Source[:], data[6:12])
	frame.EtherType = common.EtherType(binary.BigEndian.Uint16(data[12:14]))
	frame.Payload = data[HeaderSize:]

	return frame, nil
}

// EncodeHeader writes the 14-byte Ethernet header into b, which must be at
// least HeaderSize long.
func EncodeHeader(b []byte, dst, src common.MACAddress, etherType common.EtherType) {
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
	binary.BigEndian.PutUint16(b[12:14], uint16(etherType))
}

// Serialize converts the frame to bytes for transmission, padding the payload
// up to the Ethernet minimum. The FCS is left to the hardware.
func (f *Frame) Serialize() []byte {
	frameSize := HeaderSize + len(f.Payload)
	if len(f.Payload) < MinPayloadSize {
		frameSize = HeaderSize + MinPayloadSize
	}

	frame := make([]byte, frameSize)
	EncodeHeader(frame, f.Destination, f.Source, f.EtherType)
	copy(frame[HeaderSize:], f.Payload)

	return frame
}

// IsMulticast returns true if this is a multicast frame.
func (f *Frame) IsMulticast() bool {
	return f.Destination.IsMulticast()
}

// String returns a human-readable representation of the frame.
func (f *Frame) String() string {
	return fmt.Sprintf("Ethernet{Dst=%s, Src=%s, Type=%s, PayloadLen=%d}",
		f.Destination, f.Source, f.EtherType, len(f.Payload))
}
