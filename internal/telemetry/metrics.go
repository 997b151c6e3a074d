package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "gpuwatch"

// Metrics holds prometheus collectors for the manager. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FramesReceived   *prometheus.CounterVec
	DecodeErrors     *prometheus.CounterVec
	SamplesApplied   *prometheus.CounterVec
	TransportErrors  *prometheus.CounterVec
	DialAttempts     prometheus.Counter
	ConnectionStates *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Text frames received from metrics servers.",
		}, []string{"connection"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Frames dropped because they could not be decoded.",
		}, []string{"connection"}),
		SamplesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "samples_applied_total",
			Help:      "Device samples appended to rolling buffers.",
		}, []string{"connection"}),
		TransportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Socket failures that forced a connection to disconnected.",
		}, []string{"connection"}),
		DialAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dial_attempts_total",
			Help:      "Socket open attempts.",
		}),
		ConnectionStates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Connections by lifecycle state.",
		}, []string{"state"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.DecodeErrors,
			m.SamplesApplied,
			m.TransportErrors,
			m.DialAttempts,
			m.ConnectionStates,
		)
	}
	return m
}

func connLabel(id int) string {
	return strconv.Itoa(id)
}

func (m *Metrics) frameReceived(id int) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(connLabel(id)).Inc()
}

func (m *Metrics) decodeFailed(id int) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(connLabel(id)).Inc()
}

func (m *Metrics) sampleApplied(id int) {
	if m == nil {
		return
	}
	m.SamplesApplied.WithLabelValues(connLabel(id)).Inc()
}

func (m *Metrics) transportFailed(id int) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(connLabel(id)).Inc()
}

func (m *Metrics) dialed() {
	if m == nil {
		return
	}
	m.DialAttempts.Inc()
}

// setStates overwrites the per-state gauge with counts.
func (m *Metrics) setStates(counts map[State]int) {
	if m == nil {
		return
	}
	for _, s := range []State{StateDisconnected, StateConnecting, StateConnected} {
		m.ConnectionStates.WithLabelValues(s.String()).Set(float64(counts[s]))
	}
}

// forget drops per-connection series for a removed connection.
func (m *Metrics) forget(id int) {
	if m == nil {
		return
	}
	label := connLabel(id)
	m.FramesReceived.DeleteLabelValues(label)
	m.DecodeErrors.DeleteLabelValues(label)
	m.SamplesApplied.DeleteLabelValues(label)
	m.TransportErrors.DeleteLabelValues(label)
}
