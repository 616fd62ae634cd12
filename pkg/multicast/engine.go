package multicast

import (
	"github.com/mcastlabs/netstack/pkg/common"
	"github.com/mcastlabs/netstack/pkg/ethernet"
	"github.com/mcastlabs/netstack/pkg/ip"
)

// SocketID identifies a socket to the membership registry. The socket layer
// hands out IDs; the engine never looks inside them.
type SocketID uint64

// Driver is the slice of the NIC driver the engine needs: the multicast
// receive filter. Both operations are idempotent from the driver's point of
// view.
type Driver interface {
	AddMulticastFilter(mac common.MACAddress) error
	RemoveMulticastFilter(mac common.MACAddress) error
}

// FrameWriter transmits a fully built Ethernet frame.
type FrameWriter interface {
	WriteFrame(frame []byte) error
}

// Membership records one (socket, group) pair. A socket never holds two
// memberships for the same group.
type Membership struct {
	Socket    SocketID
	Group     common.IPv4Address
	Interface common.IPv4Address
}

// Config carries the engine's collaborators and switches.
type Config struct {
	LocalMAC common.MACAddress
	LocalIP  common.IPv4Address

	Driver  Driver
	Output  FrameWriter
	Buffers *common.BufferPool

	// Random spreads report times; nil selects DefaultRandomSource.
	Random RandomSource

	// DontFragment sets the DF bit on outgoing reports.
	DontFragment bool

	// HardwareChecksum leaves the IP header checksum to the NIC.
	HardwareChecksum bool

	// NameResolution pre-registers the LLMNR group at startup so the
	// companion name-resolution responder receives its queries.
	NameResolution bool

	// Metrics may be shared with other engines; nil creates an
	// unregistered set.
	Metrics *Metrics
}

// Engine is the IGMP membership and report-scheduling core.
//
// The engine is deliberately lock-free: every method that reads or mutates
// the schedule list, the membership lists, or the NIC filter must be invoked
// from the stack's single serialized processing loop. Correctness rests on
// that single-writer discipline, not on locking.
type Engine struct {
	cfg      Config
	schedule *ScheduleList
	members  map[SocketID][]*Membership
	metrics  *Metrics
}

// NewEngine creates an engine. Start must be called (from the serialized
// loop) before any traffic is processed.
func NewEngine(cfg Config) *Engine {
	if cfg.Random == nil {
		cfg.Random = DefaultRandomSource
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	return &Engine{
		cfg:      cfg,
		schedule: NewScheduleList(cfg.Random),
		members:  make(map[SocketID][]*Membership),
		metrics:  cfg.Metrics,
	}
}

// Start programs the NIC filter for the all-hosts group so router queries
// are received, and pre-registers the LLMNR group when name resolution is
// enabled.
func (e *Engine) Start() {
	_ = e.cfg.Driver.AddMulticastFilter(MulticastMAC(AllHostsGroup))

	if e.cfg.NameResolution {
		rep := NewPendingReport(LLMNRGroup, common.IPv4Address{})
		e.schedule.InsertOrMerge(rep)
	}
}

// Schedule exposes the pending-report registry, mainly for diagnostics and
// tests. Callers are bound by the same serialized-loop rule as the engine.
func (e *Engine) Schedule() *ScheduleList {
	return e.schedule
}

// Join registers a socket's membership in a multicast group. A duplicate
// join of the same (socket, group) pair is silently ignored. A fresh pending
// report is handed to the schedule list; when the list merges it into an
// existing entry instead, the descriptor built here is simply dropped. The
// NIC filter learns the group's derived multicast MAC exactly when the group
// goes from zero to one subscribed sockets network-wide.
func (e *Engine) Join(sock SocketID, group, ifaceAddr common.IPv4Address) {
	list := e.members[sock]
	for _, m := range list {
		if m.Group == group {
			return
		}
	}

	e.members[sock] = append(list, &Membership{
		Socket:    sock,
		Group:     group,
		Interface: ifaceAddr,
	})

	rep := NewPendingReport(group, ifaceAddr)
	if e.schedule.InsertOrMerge(rep) {
		_ = e.cfg.Driver.AddMulticastFilter(MulticastMAC(group))
	}
}

// Leave removes a socket's membership in a group, keyed purely by the
// (socket, group) pair. The group's pending report loses one reference, and
// the NIC filter entry is withdrawn exactly when the last subscribed socket
// goes away. Leaving a group the socket never joined is a silent no-op.
func (e *Engine) Leave(sock SocketID, group common.IPv4Address) {
	list := e.members[sock]
	for i, m := range list {
		if m.Group != group {
			continue
		}

		e.members[sock] = append(list[:i], list[i+1:]...)
		if len(e.members[sock]) == 0 {
			delete(e.members, sock)
		}

		if e.schedule.RemoveOrDecrement(group) {
			_ = e.cfg.Driver.RemoveMulticastFilter(MulticastMAC(group))
		}
		return
	}
}

// CloseSocket leaves every group the socket is a member of.
func (e *Engine) CloseSocket(sock SocketID) {
	list := e.members[sock]
	groups := make([]common.IPv4Address, len(list))
	for i, m := range list {
		groups[i] = m.Group
	}
	for _, group := range groups {
		e.Leave(sock, group)
	}
}

// Memberships returns the groups a socket is currently joined to, in join
// order.
func (e *Engine) Memberships(sock SocketID) []common.IPv4Address {
	list := e.members[sock]
	groups := make([]common.IPv4Address, len(list))
	for i, m := range list {
		groups[i] = m.Group
	}
	return groups
}

// reportFrameSize is a full IGMP frame: Ethernet + IPv4 + IGMP headers.
const reportFrameSize = ethernet.HeaderSize + ip.HeaderSize + HeaderLen

// ProcessFrame handles one inbound Ethernet frame carrying IGMP. The frame's
// buffer is always released back to the pool, whichever branch is taken;
// IGMP processing never retains buffer ownership.
func (e *Engine) ProcessFrame(frame []byte) {
	defer e.cfg.Buffers.Release(frame)

	if len(frame) < reportFrameSize {
		e.metrics.FramesDiscarded.Inc()
		return
	}

	ethFrame, err := ethernet.Parse(frame)
	if err != nil || ethFrame.EtherType != common.EtherTypeIPv4 {
		e.metrics.FramesDiscarded.Inc()
		return
	}

	ipHdr, payloadOff, err := ip.ParseHeader(ethFrame.Payload)
	if err != nil || ipHdr.Protocol != common.ProtocolIGMP {
		e.metrics.FramesDiscarded.Inc()
		return
	}

	msg, err := ParseMessage(ethFrame.Payload[payloadOff:])
	if err != nil {
		e.metrics.FramesDiscarded.Inc()
		return
	}

	switch msg.Type {
	case MembershipQuery:
		e.processQuery(msg)

	case V1MembershipReport, V2MembershipReport, V3MembershipReport:
		// Reports from other hosts are only tallied. Per RFC 2236 a
		// competing report could suppress our own pending report for
		// the same group; this engine does not do that.
		e.metrics.ReportsReceived.Inc()

	default:
		e.metrics.FramesDiscarded.Inc()
	}
}

// processQuery re-arms the countdown of every pending report that is idle or
// would otherwise fire after the query's response deadline. Entries already
// scheduled inside the deadline are left alone, so a flurry of queries does
// not churn the schedule. Group-specific queries take the same path as
// general queries.
func (e *Engine) processQuery(msg *Message) {
	e.metrics.QueriesReceived.Inc()

	// Floor the advertised max response time at 2 before decrementing so
	// the draw range [1, maxResp] is never degenerate.
	maxResp := msg.MaxRespTime
	if maxResp < 2 {
		maxResp = 2
	}
	maxResp--

	mask := nextPow2Mask(uint32(maxResp))

	// Cursor for the deterministic fallback, used only when the random
	// source fails; it round-robins through [1, maxResp] over the scan.
	fallback := uint8(1)

	for _, rep := range e.schedule.Reports() {
		if rep.countdown != 0 && rep.countdown < msg.MaxRespTime {
			continue
		}

		if v, ok := e.cfg.Random.Uint32(); ok {
			v &= mask
			if v == 0 {
				v = 1
			}
			for v > uint32(maxResp) {
				v -= uint32(maxResp)
			}
			rep.countdown = uint8(v)
		} else {
			rep.countdown = fallback
			fallback++
			if fallback > maxResp {
				fallback = 1
			}
		}
	}
}

// nextPow2Mask returns the smallest all-ones mask covering n. The inputs
// here fit in 8 bits, so shifting by 1, 2 and 4 saturates the value.
func nextPow2Mask(n uint32) uint32 {
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	if n == 0 {
		n = 1
	}
	return n
}

// Tick advances the schedule by one TickPeriod: every armed countdown is
// decremented and a membership report is transmitted for each one that
// reaches zero. The countdown then stays at zero until the next query (or a
// fresh join) re-arms it. Buffer acquisition on this path is strictly
// non-blocking; stalling the serialized loop for a housekeeping send is
// never acceptable.
func (e *Engine) Tick() {
	for _, rep := range e.schedule.Reports() {
		if rep.countdown == 0 {
			continue
		}
		rep.countdown--
		if rep.countdown == 0 {
			e.sendReport(V2MembershipReport, 0, rep.Group, rep.Group, 0)
		}
	}
}
