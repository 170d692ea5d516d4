package channelz

import "github.com/prometheus/client_golang/prometheus"

// Collector adapts a set of named Counters into a prometheus.Collector,
// so a host process can register this core's call/message counters
// alongside its own metrics without this core depending on *how*
// metrics are scraped.
type Collector struct {
	named map[string]*Counters

	callsStarted   *prometheus.Desc
	callsSucceeded *prometheus.Desc
	callsFailed    *prometheus.Desc
	msgSent        *prometheus.Desc
	msgRecv        *prometheus.Desc
}

// NewCollector builds a Collector over named, a map from a label value
// (e.g. a ClientConn target or a server's listen address) to the
// Counters tracking it.
func NewCollector(named map[string]*Counters) *Collector {
	return &Collector{
		named:          named,
		callsStarted:   prometheus.NewDesc("grpc_core_calls_started_total", "RPCs started.", []string{"target"}, nil),
		callsSucceeded: prometheus.NewDesc("grpc_core_calls_succeeded_total", "RPCs that completed with status OK.", []string{"target"}, nil),
		callsFailed:    prometheus.NewDesc("grpc_core_calls_failed_total", "RPCs that completed with a non-OK status.", []string{"target"}, nil),
		msgSent:        prometheus.NewDesc("grpc_core_messages_sent_total", "Messages sent.", []string{"target"}, nil),
		msgRecv:        prometheus.NewDesc("grpc_core_messages_received_total", "Messages received.", []string{"target"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callsStarted
	ch <- c.callsSucceeded
	ch <- c.callsFailed
	ch <- c.msgSent
	ch <- c.msgRecv
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for target, counters := range c.named {
		snap := counters.Snapshot()
		ch <- prometheus.MustNewConstMetric(c.callsStarted, prometheus.CounterValue, float64(snap.CallsStarted), target)
		ch <- prometheus.MustNewConstMetric(c.callsSucceeded, prometheus.CounterValue, float64(snap.CallsSucceeded), target)
		ch <- prometheus.MustNewConstMetric(c.callsFailed, prometheus.CounterValue, float64(snap.CallsFailed), target)
		ch <- prometheus.MustNewConstMetric(c.msgSent, prometheus.CounterValue, float64(snap.MsgSent), target)
		ch <- prometheus.MustNewConstMetric(c.msgRecv, prometheus.CounterValue, float64(snap.MsgRecv), target)
	}
}
