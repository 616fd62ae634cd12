// Package udp provides the socket-layer surface the multicast engine hangs
// off of: sockets carry an identity and a generic option mechanism through
// which applications join and leave IPv4 multicast groups.
package udp

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mcastlabs/netstack/pkg/common"
	"github.com/mcastlabs/netstack/pkg/multicast"
)

// Option identifies a socket option.
type Option int

// Socket options understood by SetSockOpt.
const (
	// AddMembership joins the socket to an IPv4 multicast group. The
	// value must be a GroupReq.
	AddMembership Option = iota + 1

	// DropMembership leaves an IPv4 multicast group. The value must be a
	// GroupReq; its Interface field is ignored.
	DropMembership
)

// GroupReq names a multicast group and the local interface address to join
// it on. A zero Interface selects the stack's default interface.
type GroupReq struct {
	Group     common.IPv4Address
	Interface common.IPv4Address
}

// MembershipControl carries membership changes into the stack's serialized
// processing loop. Implemented by the stack; sockets never touch the engine
// directly.
type MembershipControl interface {
	Join(sock multicast.SocketID, group, ifaceAddr common.IPv4Address) error
	Leave(sock multicast.SocketID, group common.IPv4Address) error
	CloseSocket(sock multicast.SocketID) error
}

var nextSocketID uint64

// Socket is a minimal UDP socket: an identity plus the option mechanism.
// Datagram I/O is out of scope here; what matters to the multicast engine is
// which groups each socket holds.
type Socket struct {
	id   multicast.SocketID
	ctrl MembershipControl

	mu     sync.Mutex
	closed bool
}

// NewSocket creates a socket whose membership changes flow through ctrl.
func NewSocket(ctrl MembershipControl) *Socket {
	return &Socket{
		id:   multicast.SocketID(atomic.AddUint64(&nextSocketID, 1)),
		ctrl: ctrl,
	}
}

// ID returns the socket's identity as seen by the membership registry.
func (s *Socket) ID() multicast.SocketID {
	return s.id
}

// SetSockOpt applies a socket option. Unknown options and mistyped values
// are rejected; membership changes are forwarded to the stack.
func (s *Socket) SetSockOpt(opt Option, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("socket is closed")
	}

	req, ok := value.(GroupReq)
	if !ok {
		return fmt.Errorf("option value must be a GroupReq, got %T", value)
	}

	switch opt {
	case AddMembership:
		if !req.Group.IsMulticast() {
			return fmt.Errorf("not a multicast address: %s", req.Group)
		}
		return s.ctrl.Join(s.id, req.Group, req.Interface)

	case DropMembership:
		return s.ctrl.Leave(s.id, req.Group)

	default:
		return fmt.Errorf("unknown socket option: %d", opt)
	}
}

// Close releases the socket and leaves every multicast group it joined.
// Closing twice is harmless.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.ctrl.CloseSocket(s.id)
}
