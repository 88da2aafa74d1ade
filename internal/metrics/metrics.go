package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates the application Prometheus registry with the
// standard Go and process collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics carries the application metric set.
type AppMetrics struct {
	BytesReceived  prometheus.Counter
	FramesTotal    *prometheus.CounterVec // labels: function
	ResyncDiscards prometheus.Counter

	Correlations      *prometheus.CounterVec // labels: target
	CorrelationMisses *prometheus.CounterVec // labels: reason

	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge // 0 disconnected, 1 connecting, 2 connected, 3 reconnecting

	SlavesAvailable         prometheus.Gauge
	AvailabilityTransitions *prometheus.CounterVec // labels: state

	WriteAttempts  prometheus.Counter
	SetpointWrites *prometheus.CounterVec // labels: result

	NotifyDropped *prometheus.CounterVec // labels: sink
}

// NewNop returns an AppMetrics set backed by a private registry, for
// components constructed without one.
func NewNop() *AppMetrics {
	return NewAppMetrics(prometheus.NewRegistry())
}

// NewAppMetrics registers and returns the application metrics.
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_bytes_received_total",
			Help: "Total bytes read from the bridge.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_frames_total",
			Help: "Valid frames extracted from the stream.",
		}, []string{"function"}),
		ResyncDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_resync_discards_total",
			Help: "Bytes discarded while resynchronizing on the stream.",
		}),
		Correlations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_correlations_total",
			Help: "Responses matched to a pending request, by target.",
		}, []string{"target"}),
		CorrelationMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_correlation_misses_total",
			Help: "Frames that could not be correlated, by reason.",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_reconnects_total",
			Help: "Bridge reconnect attempts.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_connection_state",
			Help: "Bridge connection state (0 disconnected, 1 connecting, 2 connected, 3 reconnecting).",
		}),
		SlavesAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_slaves_available",
			Help: "Slaves currently considered available.",
		}),
		AvailabilityTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_availability_transitions_total",
			Help: "Slave availability transitions, by resulting state.",
		}, []string{"state"}),
		WriteAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "monitor_write_attempts_total",
			Help: "Setpoint write frames sent to the bus.",
		}),
		SetpointWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_setpoint_writes_total",
			Help: "Completed setpoint write commands, by result.",
		}, []string{"result"}),
		NotifyDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_notify_dropped_total",
			Help: "Notification events dropped by a saturated sink.",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		m.BytesReceived, m.FramesTotal, m.ResyncDiscards,
		m.Correlations, m.CorrelationMisses,
		m.Reconnects, m.ConnectionState,
		m.SlavesAvailable, m.AvailabilityTransitions,
		m.WriteAttempts, m.SetpointWrites,
		m.NotifyDropped,
	)
	return m
}
