package ethernet

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/mcastlabs/netstack/pkg/common"
)

// Interface represents a network interface for sending and receiving Ethernet
// frames over an AF_PACKET raw socket. It also exposes the NIC's multicast
// receive filter, which the IGMP engine keeps in sync with active group
// memberships.
type Interface struct {
	name       string
	fd         int
	macAddress common.MACAddress
	index      int
}

// OpenInterface opens a network interface for raw packet capture and
// transmission. This requires root/CAP_NET_RAW on Linux.
func OpenInterface(ifname string) (*Interface, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, fmt.Errorf("failed to get interface %s: %w", ifname, err)
	}

	if len(iface.HardwareAddr) != 6 {
		return nil, fmt.Errorf("invalid MAC address length: %d", len(iface.HardwareAddr))
	}
	var mac common.MACAddress
	copy(mac[:], iface.HardwareAddr)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create raw socket: %w (you may need root/sudo)", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to bind socket to interface: %w", err)
	}

	return &Interface{
		name:       ifname,
		fd:         fd,
		macAddress: mac,
		index:      iface.Index,
	}, nil
}

// Close closes the network interface.
func (i *Interface) Close() error {
	if i.fd >= 0 {
		return unix.Close(i.fd)
	}
	return nil
}

// Name returns the interface name.
func (i *Interface) Name() string {
	return i.name
}

// MACAddress returns the hardware address of this interface.
func (i *Interface) MACAddress() common.MACAddress {
	return i.macAddress
}

// Index returns the interface index.
func (i *Interface) Index() int {
	return i.index
}

// AddMulticastFilter programs the NIC to accept frames sent to the given
// multicast MAC address. The kernel reference-counts memberships per socket,
// so repeated adds of the same address are harmless.
func (i *Interface) AddMulticastFilter(mac common.MACAddress) error {
	return i.setMembership(unix.PACKET_ADD_MEMBERSHIP, mac)
}

// RemoveMulticastFilter removes a multicast MAC address from the NIC's
// receive filter. Removing an address that was never added is harmless.
func (i *Interface) RemoveMulticastFilter(mac common.MACAddress) error {
	return i.setMembership(unix.PACKET_DROP_MEMBERSHIP, mac)
}

func (i *Interface) setMembership(op int, mac common.MACAddress) error {
	mreq := unix.PacketMreq{
		Ifindex: int32(i.index),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    6,
	}
	copy(mreq.Address[:], mac[:])

	if err := unix.SetsockoptPacketMreq(i.fd, unix.SOL_PACKET, op, &mreq); err != nil {
		return fmt.Errorf("multicast filter update for %s failed: %w", mac, err)
	}
	return nil
}

// ReadFrame reads one raw Ethernet frame into buf and returns the number of
// bytes received. This is a blocking call.
func (i *Interface) ReadFrame(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(i.fd, buf, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to receive packet: %w", err)
	}
	return n, nil
}

// WriteFrame sends a fully built Ethernet frame. The destination hardware
// address is taken from the frame itself.
func (i *Interface) WriteFrame(frame []byte) error {
	if len(frame) < HeaderSize {
		return fmt.Errorf("frame too short: %d bytes", len(frame))
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  i.index,
		Halen:    6,
	}
	copy(addr.Addr[:], frame[0:6])

	if err := unix.Sendto(i.fd, frame, 0, &addr); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

// htons converts a 16-bit integer from host byte order to network byte order.
func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}
