// Package metrics holds the prometheus collectors of the realtime backend.
// All methods are safe on a nil *Metrics so components can run without them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "astrochat"

type Metrics struct {
	connections     prometheus.Gauge
	inboundOps      *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	messagesRelayed prometheus.Counter
	swept           prometheus.Counter
	droppedEvents   prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open realtime connections.",
		}),
		inboundOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_inbound_ops_total",
			Help:      "Inbound realtime operations by op and result kind.",
		}, []string{"op", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultation_transitions_total",
			Help:      "Consultation requests that entered each status.",
		}, []string{"status"}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Direct messages persisted and routed.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultation_swept_total",
			Help:      "Pending requests expired by the sweeper.",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_dropped_events_total",
			Help:      "Outbound events dropped because a connection buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.inboundOps, m.transitions, m.messagesRelayed, m.swept, m.droppedEvents)
	}
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// InboundOp counts one processed op. result is "ok" or an error kind.
func (m *Metrics) InboundOp(op, result string) {
	if m == nil {
		return
	}
	m.inboundOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) MessageRelayed() {
	if m == nil {
		return
	}
	m.messagesRelayed.Inc()
}

func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
	m.transitions.WithLabelValues("expired").Add(float64(n))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}
