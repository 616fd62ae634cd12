package multicast

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
)

// HostSocket joins multicast groups through the host operating system's own
// stack. It exists for interop testing and demos: a group joined here makes
// the kernel emit its own IGMP reports, which this package's engine then
// observes on the wire.
type HostSocket struct {
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

// NewHostSocket opens a UDP socket bound to address (e.g. ":5353") and wraps
// it for multicast control.
func NewHostSocket(address string) (*HostSocket, error) {
	conn, err := net.ListenPacket("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("not a UDP connection")
	}
	return &HostSocket{
		conn: udpConn,
		pc:   ipv4.NewPacketConn(udpConn),
	}, nil
}

// JoinGroup joins an IPv4 multicast group on the given interface.
func (s *HostSocket) JoinGroup(iface *net.Interface, group net.IP) error {
	return s.pc.JoinGroup(iface, &net.UDPAddr{IP: group})
}

// LeaveGroup leaves an IPv4 multicast group on the given interface.
func (s *HostSocket) LeaveGroup(iface *net.Interface, group net.IP) error {
	return s.pc.LeaveGroup(iface, &net.UDPAddr{IP: group})
}

// SetMulticastTTL sets the TTL for outgoing multicast packets.
func (s *HostSocket) SetMulticastTTL(ttl int) error {
	return s.pc.SetMulticastTTL(ttl)
}

// ReadFrom receives one datagram.
func (s *HostSocket) ReadFrom(buf []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(buf)
}

// WriteTo sends one datagram.
func (s *HostSocket) WriteTo(data []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(data, addr)
}

// Close closes the socket.
func (s *HostSocket) Close() error {
	return s.conn.Close()
}
