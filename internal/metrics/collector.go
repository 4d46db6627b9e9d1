package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recorder"

type counterDesc struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(Summary) float64
}

// Collector exposes a Sink to Prometheus.
type Collector struct {
	sink  *Sink
	descs []counterDesc
}

// NewCollector creates a collector over sink.
func NewCollector(sink *Sink) *Collector {
	counter := func(name, help string, v func(Summary) float64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			kind:  prometheus.CounterValue,
			value: v,
		}
	}
	gauge := func(name, help string, v func(Summary) float64) counterDesc {
		d := counter(name, help, v)
		d.kind = prometheus.GaugeValue
		return d
	}
	u := func(f func(Summary) uint64) func(Summary) float64 {
		return func(s Summary) float64 { return float64(f(s)) }
	}

	return &Collector{
		sink: sink,
		descs: []counterDesc{
			counter("connection_attempts_total", "WebSocket dial attempts.", u(func(s Summary) uint64 { return s.ConnectionAttempts })),
			counter("connection_successes_total", "Established WebSocket sessions.", u(func(s Summary) uint64 { return s.SuccessfulConnections })),
			counter("connection_failures_total", "Failed dials and lost sessions.", u(func(s Summary) uint64 { return s.FailedConnections })),
			counter("reconnect_attempts_total", "Dial attempts after a failure.", u(func(s Summary) uint64 { return s.ReconnectAttempts })),
			counter("messages_received_total", "Inbound frames.", u(func(s Summary) uint64 { return s.MessagesReceived })),
			counter("order_book_updates_total", "Order-book frames.", u(func(s Summary) uint64 { return s.OrderBookUpdates })),
			counter("trade_updates_total", "Trade frames.", u(func(s Summary) uint64 { return s.TradeUpdates })),
			counter("error_messages_total", "Exchange error frames.", u(func(s Summary) uint64 { return s.ErrorMessages })),
			counter("invalid_messages_total", "Frames that failed to decode.", u(func(s Summary) uint64 { return s.InvalidMessages })),
			counter("unknown_messages_total", "Frames of unrecognized shape.", u(func(s Summary) uint64 { return s.UnknownMessages })),
			counter("database_writes_total", "Committed write transactions.", u(func(s Summary) uint64 { return s.DatabaseWrites })),
			counter("database_errors_total", "Rolled back write transactions.", u(func(s Summary) uint64 { return s.DatabaseErrors })),
			counter("duplicate_snapshots_total", "Unchanged snapshots skipped.", u(func(s Summary) uint64 { return s.DuplicateSnapshots })),
			counter("duplicate_trades_total", "Already stored trades skipped.", u(func(s Summary) uint64 { return s.DuplicateTrades })),
			counter("heartbeats_sent_total", "Keepalive pings sent.", u(func(s Summary) uint64 { return s.HeartbeatsSent })),
			counter("heartbeats_received_total", "Keepalive replies received.", u(func(s Summary) uint64 { return s.HeartbeatsReceived })),
			counter("heartbeat_failures_total", "Keepalive pings without reply.", u(func(s Summary) uint64 { return s.HeartbeatFailures })),
			counter("health_checks_total", "Health evaluations.", u(func(s Summary) uint64 { return s.HealthChecks })),
			counter("forced_reconnects_total", "Reconnects ordered by the health monitor.", u(func(s Summary) uint64 { return s.ForcedReconnects })),
			gauge("heartbeat_consecutive_failures", "Keepalive failures since the last reply.", u(func(s Summary) uint64 { return s.ConsecutiveHeartbeatFailures })),
			gauge("connected", "1 while a session is established.", func(s Summary) float64 {
				if s.Connected {
					return 1
				}
				return 0
			}),
			gauge("uptime_seconds", "Accumulated connected time.", func(s Summary) float64 { return s.TotalUptime.Seconds() }),
			gauge("last_data_received_timestamp_seconds", "Unix time of the last inbound frame.", func(s Summary) float64 {
				if s.LastDataReceived.IsZero() {
					return 0
				}
				return float64(s.LastDataReceived.UnixNano()) / 1e9
			}),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.sink.Summary()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.kind, d.value(s))
	}
}
