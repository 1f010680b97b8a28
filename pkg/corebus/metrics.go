package corebus

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the prometheus counters a Server updates as it serves
// connections. Grounded on the domain stack's prometheus/client_golang
// dependency, wired here because the Core Bus Dispatcher is the one
// component every daemon shares, making it the natural place for
// cross-cutting operational counters.
type Metrics struct {
	connectionsOpened prometheus.Counter
	connectionsClosed prometheus.Counter
	callsTotal        prometheus.Counter
}

// NewMetrics builds a Metrics and registers it against reg. Passing a
// nil registerer builds unregistered counters usable purely as no-op
// sinks, which is what NewServer does by default so handler code never
// has to nil-check s.metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corebus_connections_opened_total",
			Help: "Connections accepted by a core bus server.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corebus_connections_closed_total",
			Help: "Connections that have disconnected from a core bus server.",
		}),
		callsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corebus_calls_total",
			Help: "Call and Notify frames dispatched to a registered method.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.connectionsOpened, m.connectionsClosed, m.callsTotal)
	}
	return m
}
