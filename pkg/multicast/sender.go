package multicast

import (
	"time"

	"github.com/mcastlabs/netstack/pkg/common"
	"github.com/mcastlabs/netstack/pkg/ethernet"
	"github.com/mcastlabs/netstack/pkg/ip"
)

// reportIPIdentification is the fixed identification field of outgoing
// report packets. Reports are single-fragment and never reassembled, so the
// value only needs to be nonzero for the benefit of packet captures.
const reportIPIdentification = 0x1234

// sendReport builds and transmits one IGMP message as a full Ethernet/IPv4
// frame. dest is both the IP destination and the source of the derived
// multicast MAC. Reports carry TTL 1; they must never leave the local
// network.
//
// Failure to acquire a buffer within wait silently drops the send: IGMP is
// soft state, and the next query or tick retries naturally.
func (e *Engine) sendReport(msgType, respTime uint8, group, dest common.IPv4Address, wait time.Duration) {
	buf := e.cfg.Buffers.Acquire(reportFrameSize, wait)
	if buf == nil {
		e.metrics.SendsDropped.Inc()
		return
	}
	defer e.cfg.Buffers.Release(buf)

	ethernet.EncodeHeader(buf, MulticastMAC(dest), e.cfg.LocalMAC, common.EtherTypeIPv4)

	hdr := ip.Header{
		TotalLength:    ip.HeaderSize + HeaderLen,
		Identification: reportIPIdentification,
		TTL:            1,
		Protocol:       common.ProtocolIGMP,
		Source:         e.cfg.LocalIP,
		Destination:    dest,
	}
	if e.cfg.DontFragment {
		hdr.Flags = ip.FlagDontFragment
	}
	if err := hdr.Encode(buf[ethernet.HeaderSize:], !e.cfg.HardwareChecksum); err != nil {
		e.metrics.SendsDropped.Inc()
		return
	}

	msg := Message{Type: msgType, MaxRespTime: respTime, Group: group}
	if err := msg.Encode(buf[ethernet.HeaderSize+ip.HeaderSize:]); err != nil {
		e.metrics.SendsDropped.Inc()
		return
	}

	if err := e.cfg.Output.WriteFrame(buf); err != nil {
		e.metrics.SendsDropped.Inc()
		return
	}
	e.metrics.ReportsSent.Inc()
}
