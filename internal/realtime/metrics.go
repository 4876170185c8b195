package realtime

import "github.com/prometheus/client_golang/prometheus"

const namespace = "beneficiarios"

// Teardown reasons recorded on the teardowns counter.
const (
	reasonClosed      = "closed"
	reasonWriteFailed = "write_failed"
	reasonDead        = "dead"
	reasonShutdown    = "shutdown"
)

// Metrics holds Prometheus metrics for the event stream.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	CachedEvents      prometheus.Gauge
	Broadcasts        prometheus.Counter
	Deliveries        *prometheus.CounterVec
	Teardowns         *prometheus.CounterVec
}

// NewMetrics creates and registers event stream metrics on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "active_connections",
			Help:      "Number of event stream connections held by this instance.",
		}),
		CachedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "cached_events",
			Help:      "Number of events in the recent-event cache.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast calls.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "deliveries_total",
			Help:      "Broadcast writes by result (delivered or dropped).",
		}, []string{"result"}),
		Teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sse",
			Name:      "teardowns_total",
			Help:      "Connections removed from the registry by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.CachedEvents, m.Broadcasts, m.Deliveries, m.Teardowns)
	return m
}
