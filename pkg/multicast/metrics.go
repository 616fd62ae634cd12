package multicast

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's diagnostic counters. Inbound membership reports
// from other hosts are tallied here and nothing else; they do not suppress
// this host's own pending reports.
type Metrics struct {
	QueriesReceived prometheus.Counter
	ReportsReceived prometheus.Counter
	ReportsSent     prometheus.Counter
	SendsDropped    prometheus.Counter
	FramesDiscarded prometheus.Counter
}

// NewMetrics builds the counter set and registers it with reg when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "igmp",
			Name:      "queries_received_total",
			Help:      "Number of IGMP membership queries received.",
		}),
		ReportsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "igmp",
			Name:      "reports_received_total",
			Help:      "Number of IGMP membership reports (v1/v2/v3) received from other hosts.",
		}),
		ReportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "igmp",
			Name:      "reports_sent_total",
			Help:      "Number of IGMP membership reports transmitted.",
		}),
		SendsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "igmp",
			Name:      "sends_dropped_total",
			Help:      "Number of report transmissions skipped due to buffer exhaustion or output failure.",
		}),
		FramesDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netstack",
			Subsystem: "igmp",
			Name:      "frames_discarded_total",
			Help:      "Number of inbound frames discarded as undersized, malformed, or of unknown type.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.QueriesReceived, m.ReportsReceived, m.ReportsSent,
			m.SendsDropped, m.FramesDiscarded)
	}
	return m
}
