package common

import "encoding/binary"

// CalculateChecksum computes the Internet checksum as defined in RFC 1071.
// The Internet checksum is a 16-bit one's complement of the one's complement sum
// of all 16-bit words in the data. If the data length is odd, the last byte is
// padded with a zero byte.
//
// This checksum is used in the IP and IGMP headers emitted by this stack.
func CalculateChecksum(data []byte) uint16 {
	var sum uint32
	length := len(data)

	for i := 0; i < length-1; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}

	// If length is odd, add the last byte (padded with zero)
	if length%2 == 1 {
		sum += uint32(data[length-1]) << 8
	}

	// Fold carry bits back into the low 16 bits
	for sum > 0xFFFF {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}

	return ^uint16(sum)
}

// VerifyChecksum verifies that the checksum of the data is correct.
// When calculating the checksum over data that includes the checksum field,
// the result should be 0 (or 0xFFFF, which is equivalent in one's complement).
func VerifyChecksum(data []byte) bool {
	checksum := CalculateChecksum(data)
	return checksum == 0 || checksum == 0xFFFF
}
