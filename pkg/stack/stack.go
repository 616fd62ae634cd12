// Package stack glues the protocol engines to a single serialized event
// loop. All membership and schedule mutation happens on that loop, in FIFO
// message order; inbound frames, application join/leave requests and the
// periodic tick all arrive as posted events.
package stack

import (
	"context"
	"fmt"
	"time"

	"github.com/projectdiscovery/gologger"

	"github.com/mcastlabs/netstack/pkg/common"
	"github.com/mcastlabs/netstack/pkg/ethernet"
	"github.com/mcastlabs/netstack/pkg/ip"
	"github.com/mcastlabs/netstack/pkg/multicast"
)

// EventType discriminates the messages delivered to the processing loop.
type EventType uint8

// Event types.
const (
	NetworkRxEvent EventType = iota + 1
	TickEvent
	JoinEvent
	LeaveEvent
	SocketCloseEvent
)

// Event is one message on the processing loop's queue.
type Event struct {
	Type EventType
	Data interface{}
}

type joinRequest struct {
	sock  multicast.SocketID
	group common.IPv4Address
	iface common.IPv4Address
}

type leaveRequest struct {
	sock  multicast.SocketID
	group common.IPv4Address
}

const (
	// DefaultQueueDepth is the event queue capacity when none is given.
	DefaultQueueDepth = 64

	// DefaultPostWait bounds how long application-facing calls wait for
	// queue space. Inbound frames and ticks never wait.
	DefaultPostWait = 20 * time.Millisecond
)

// Config carries the stack's collaborators and switches through to the IGMP
// engine.
type Config struct {
	LocalMAC common.MACAddress
	LocalIP  common.IPv4Address

	Driver  multicast.Driver
	Output  multicast.FrameWriter
	Buffers *common.BufferPool

	Random           multicast.RandomSource
	DontFragment     bool
	HardwareChecksum bool
	NameResolution   bool
	Metrics          *multicast.Metrics

	// QueueDepth is the event queue capacity; 0 selects DefaultQueueDepth.
	QueueDepth int
}

// Stack owns the event queue and the engines behind it.
type Stack struct {
	events chan Event
	engine *multicast.Engine
	pool   *common.BufferPool
}

// New wires up a stack. Run must be started before events are consumed.
func New(cfg Config) *Stack {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	if cfg.Buffers == nil {
		cfg.Buffers = common.NewDefaultBufferPool()
	}

	engine := multicast.NewEngine(multicast.Config{
		LocalMAC:         cfg.LocalMAC,
		LocalIP:          cfg.LocalIP,
		Driver:           cfg.Driver,
		Output:           cfg.Output,
		Buffers:          cfg.Buffers,
		Random:           cfg.Random,
		DontFragment:     cfg.DontFragment,
		HardwareChecksum: cfg.HardwareChecksum,
		NameResolution:   cfg.NameResolution,
		Metrics:          cfg.Metrics,
	})

	return &Stack{
		events: make(chan Event, depth),
		engine: engine,
		pool:   cfg.Buffers,
	}
}

// Engine returns the IGMP engine. Outside of the processing loop it may only
// be used for read-side diagnostics.
func (s *Stack) Engine() *multicast.Engine {
	return s.engine
}

// Post places an event on the queue, waiting up to wait for space. It
// reports whether the event was accepted; a full queue is the caller's cue
// to drop the work and let the protocol's soft state self-correct.
func (s *Stack) Post(ev Event, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case s.events <- ev:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.events <- ev:
		return true
	case <-timer.C:
		return false
	}
}

// Run processes events until ctx is cancelled. It starts the engine, then
// owns every mutation of membership and schedule state: this goroutine is
// the stack's single serialized processing context. A companion goroutine
// turns the 100 ms tick into posted events so ticks obey the same FIFO
// ordering as everything else.
func (s *Stack) Run(ctx context.Context) {
	s.engine.Start()

	go func() {
		ticker := time.NewTicker(multicast.TickPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.Post(Event{Type: TickEvent}, 0) {
					gologger.Debug().Msg("event queue full, tick skipped")
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.dispatch(ev)
		}
	}
}

func (s *Stack) dispatch(ev Event) {
	switch ev.Type {
	case NetworkRxEvent:
		frame, ok := ev.Data.([]byte)
		if !ok {
			return
		}
		s.engine.ProcessFrame(frame)

	case TickEvent:
		s.engine.Tick()

	case JoinEvent:
		if req, ok := ev.Data.(joinRequest); ok {
			s.engine.Join(req.sock, req.group, req.iface)
		}

	case LeaveEvent:
		if req, ok := ev.Data.(leaveRequest); ok {
			s.engine.Leave(req.sock, req.group)
		}

	case SocketCloseEvent:
		if sock, ok := ev.Data.(multicast.SocketID); ok {
			s.engine.CloseSocket(sock)
		}
	}
}

// Join posts a membership join on behalf of a socket. It may block briefly
// on queue space but never on network I/O.
func (s *Stack) Join(sock multicast.SocketID, group, ifaceAddr common.IPv4Address) error {
	if !s.Post(Event{Type: JoinEvent, Data: joinRequest{sock, group, ifaceAddr}}, DefaultPostWait) {
		return fmt.Errorf("event queue full, join for %s not delivered", group)
	}
	return nil
}

// Leave posts a membership leave on behalf of a socket.
func (s *Stack) Leave(sock multicast.SocketID, group common.IPv4Address) error {
	if !s.Post(Event{Type: LeaveEvent, Data: leaveRequest{sock, group}}, DefaultPostWait) {
		return fmt.Errorf("event queue full, leave for %s not delivered", group)
	}
	return nil
}

// CloseSocket posts a leave for every group the socket holds.
func (s *Stack) CloseSocket(sock multicast.SocketID) error {
	if !s.Post(Event{Type: SocketCloseEvent, Data: sock}, DefaultPostWait) {
		return fmt.Errorf("event queue full, socket close not delivered")
	}
	return nil
}

// DeliverFrame hands an inbound frame buffer to the processing loop without
// blocking. When the queue is full the buffer is released immediately and
// the frame is lost; the next query re-syncs the soft state. Ownership of
// buf transfers on success; the loop releases it after processing.
func (s *Stack) DeliverFrame(buf []byte) bool {
	if s.Post(Event{Type: NetworkRxEvent, Data: buf}, 0) {
		return true
	}
	s.pool.Release(buf)
	return false
}

// CaptureLoop reads frames from the interface and forwards the IGMP ones to
// the processing loop. Everything else is returned to the pool untouched;
// this stack's scope is group membership, not general IP input.
func (s *Stack) CaptureLoop(ctx context.Context, iface *ethernet.Interface) {
	for ctx.Err() == nil {
		buf := s.pool.Acquire(ethernet.MaxFrameSize, time.Second)
		if buf == nil {
			continue
		}

		n, err := iface.ReadFrame(buf)
		if err != nil {
			gologger.Warning().Msgf("frame read failed: %s", err)
			s.pool.Release(buf)
			continue
		}

		if !isIGMP(buf[:n]) {
			s.pool.Release(buf)
			continue
		}

		s.DeliverFrame(buf[:n])
	}
}

// isIGMP reports whether a raw frame is IPv4 carrying IGMP.
func isIGMP(frame []byte) bool {
	if len(frame) < ethernet.HeaderSize+ip.HeaderSize {
		return false
	}
	f, err := ethernet.Parse(frame)
	if err != nil || f.EtherType != common.EtherTypeIPv4 {
		return false
	}
	hdr, _, err := ip.ParseHeader(f.Payload)
	if err != nil {
		return false
	}
	return hdr.Protocol == common.ProtocolIGMP
}
