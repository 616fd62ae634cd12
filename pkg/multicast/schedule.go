package multicast

import (
	"github.com/mcastlabs/netstack/pkg/common"
)

// PendingReport tracks one multicast group that at least one socket has
// joined, network-wide. There is never more than one PendingReport per group
// address; additional joins of the same group only raise the socket count.
// The countdown is expressed in ticks of TickPeriod; zero means no report is
// currently scheduled.
type PendingReport struct {
	Group     common.IPv4Address
	Interface common.IPv4Address

	numSockets int
	countdown  uint8
}

// NewPendingReport builds a report descriptor for a group. The socket count
// and countdown are assigned by the schedule list when the descriptor is
// inserted.
func NewPendingReport(group, ifaceAddr common.IPv4Address) *PendingReport {
	return &PendingReport{Group: group, Interface: ifaceAddr}
}

// Sockets returns the number of sockets currently subscribed to the group.
func (r *PendingReport) Sockets() int { return r.numSockets }

// Countdown returns the remaining ticks until the report fires, or zero when
// no report is scheduled.
func (r *PendingReport) Countdown() uint8 { return r.countdown }

// ScheduleList is the process-wide registry of pending reports, one entry
// per distinct group address. Iteration preserves insertion order. All
// access must happen from the stack's serialized processing loop; the list
// itself takes no locks.
type ScheduleList struct {
	rand    RandomSource
	reports []*PendingReport
	byGroup map[common.IPv4Address]*PendingReport
}

// NewScheduleList creates an empty schedule list drawing countdowns from the
// given random source.
func NewScheduleList(rand RandomSource) *ScheduleList {
	if rand == nil {
		rand = DefaultRandomSource
	}
	return &ScheduleList{
		rand:    rand,
		byGroup: make(map[common.IPv4Address]*PendingReport),
	}
}

// InsertOrMerge adds a freshly built PendingReport to the list, or merges it
// into the existing entry for the same group by raising that entry's socket
// count. The return value reports whether the list took ownership of the
// descriptor: false means a duplicate was found and the caller must discard
// the descriptor it passed in.
//
// A newly inserted entry gets an unsolicited report scheduled 2 to 9 ticks
// out. That tells IGMP-snooping switches to start forwarding the group's
// traffic right away instead of after the next general query cycle. A
// countdown of 1 would race the interface still coming up, hence the floor
// of 2.
func (l *ScheduleList) InsertOrMerge(r *PendingReport) bool {
	if existing, ok := l.byGroup[r.Group]; ok {
		existing.numSockets++
		return false
	}

	r.numSockets = 1

	v, ok := l.rand.Uint32()
	if !ok {
		// Deterministic fallback derived from the descriptor's identity.
		v = r.Group.ToUint32()
	}
	r.countdown = uint8(2 + (v & 0x07))

	l.reports = append(l.reports, r)
	l.byGroup[r.Group] = r
	return true
}

// RemoveOrDecrement lowers the socket count of the group's entry and removes
// the entry once the count reaches zero, reporting whether the entry was
// removed. Removing a group that has no entry is a silent no-op; the
// operation is idempotent.
func (l *ScheduleList) RemoveOrDecrement(group common.IPv4Address) bool {
	r, ok := l.byGroup[group]
	if !ok {
		return false
	}

	if r.numSockets > 0 {
		r.numSockets--
	}
	if r.numSockets > 0 {
		return false
	}

	delete(l.byGroup, group)
	for i, entry := range l.reports {
		if entry == r {
			l.reports = append(l.reports[:i], l.reports[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the entry for a group, if present.
func (l *ScheduleList) Lookup(group common.IPv4Address) (*PendingReport, bool) {
	r, ok := l.byGroup[group]
	return r, ok
}

// Reports returns the live entries in insertion order. The slice is shared;
// callers must not retain it across mutations of the list.
func (l *ScheduleList) Reports() []*PendingReport {
	return l.reports
}

// Len returns the number of live entries.
func (l *ScheduleList) Len() int {
	return len(l.reports)
}
