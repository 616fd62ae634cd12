// Package multicast implements the host side of IGMP (Internet Group
// Management Protocol) for IPv4 multicast: membership bookkeeping on behalf
// of sockets, query-driven report scheduling, and construction of the
// membership reports sent on the wire.
package multicast

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mcastlabs/netstack/pkg/common"
)

// IGMP message types
const (
	MembershipQuery    uint8 = 0x11 // IGMP Membership Query
	V1MembershipReport uint8 = 0x12 // IGMPv1 Membership Report
	V2MembershipReport uint8 = 0x16 // IGMPv2 Membership Report
	LeaveGroup         uint8 = 0x17 // IGMPv2 Leave Group
	V3MembershipReport uint8 = 0x22 // IGMPv3 Membership Report
)

// HeaderLen is the length of an IGMP header (8 bytes).
const HeaderLen = 8

// TickPeriod is the scheduling granularity of the report countdowns. It
// matches the unit of the max-response-time field carried in queries
// (deciseconds), so a countdown of 12 means 1.2 seconds.
const TickPeriod = 100 * time.Millisecond

// Well-known IPv4 multicast groups.
var (
	// AllHostsGroup is the all-hosts multicast address (224.0.0.1). The
	// stack registers it with the NIC filter at startup so router queries
	// are received.
	AllHostsGroup = common.IPv4Address{224, 0, 0, 1}

	// LLMNRGroup is the Link-Local Multicast Name Resolution address
	// (224.0.0.252), pre-registered when the companion name-resolution
	// protocol is enabled.
	LLMNRGroup = common.IPv4Address{224, 0, 0, 252}
)

// Message represents an IGMP message. The max-response-time field is in
// units of TickPeriod.
type Message struct {
	Type        uint8
	MaxRespTime uint8
	Checksum    uint16
	Group       common.IPv4Address
}

// ParseMessage parses an IGMP message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) < HeaderLen {
		return nil, fmt.Errorf("IGMP message too short: %d bytes", len(data))
	}

	msg := &Message{
		Type:        data[0],
		MaxRespTime: data[1],
		Checksum:    binary.BigEndian.Uint16(data[2:4]),
	}
	copy(msg.Group[:], data[4:8])

	return msg, nil
}

// Encode writes the 8-byte IGMP header into b, computing the checksum over
// the header in the process.
func (m *Message) Encode(b []byte) error {
	if len(b) < HeaderLen {
		return fmt.Errorf("buffer too short for IGMP header: %d bytes", len(b))
	}

	b[0] = m.Type
	b[1] = m.MaxRespTime
	binary.BigEndian.PutUint16(b[2:4], 0)
	copy(b[4:8], m.Group[:])

	m.Checksum = common.CalculateChecksum(b[:HeaderLen])
	binary.BigEndian.PutUint16(b[2:4], m.Checksum)

	return nil
}

// String returns a string representation of the IGMP message.
func (m *Message) String() string {
	typeStr := "Unknown"
	switch m.Type {
	case MembershipQuery:
		typeStr = "Query"
	case V1MembershipReport:
		typeStr = "Report(v1)"
	case V2MembershipReport:
		typeStr = "Report(v2)"
	case LeaveGroup:
		typeStr = "Leave"
	case V3MembershipReport:
		typeStr = "Report(v3)"
	}

	return fmt.Sprintf("IGMP{Type=%s, Group=%s, MaxRespTime=%d}",
		typeStr, m.Group, m.MaxRespTime)
}

// MulticastMAC derives the link-layer multicast address for an IPv4
// multicast group: the fixed 01:00:5e vendor prefix followed by the low
// 23 bits of the group address (RFC 1112 §6.4).
func MulticastMAC(group common.IPv4Address) common.MACAddress {
	return common.MACAddress{0x01, 0x00, 0x5E, group[1] & 0x7F, group[2], group[3]}
}
