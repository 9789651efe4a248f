package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts connection traffic. A nil *Metrics records nothing.
type Metrics struct {
	FramesIn        prometheus.Counter
	FramesOut       prometheus.Counter
	BytesIn         prometheus.Counter
	BytesOut        prometheus.Counter
	DecryptFailures prometheus.Counter
	Unmatched       prometheus.Counter
	Timeouts        prometheus.Counter
	ActiveConns     prometheus.Gauge
}

// NewMetrics creates the transport metrics and registers them with reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		FramesIn: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_frames_received_total",
			Help: "Total number of frames received",
		}),
		FramesOut: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_frames_sent_total",
			Help: "Total number of frames sent",
		}),
		BytesIn: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_bytes_received_total",
			Help: "Total number of frame bytes received",
		}),
		BytesOut: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_bytes_sent_total",
			Help: "Total number of frame bytes sent",
		}),
		DecryptFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_decrypt_failures_total",
			Help: "Total number of frames that failed authentication",
		}),
		Unmatched: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_unmatched_messages_total",
			Help: "Total number of messages dropped without a receiver",
		}),
		Timeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "mrp_request_timeouts_total",
			Help: "Total number of requests that timed out",
		}),
		ActiveConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "mrp_active_connections",
			Help: "Current number of open connections",
		}),
	}
}

func (m *Metrics) frameIn(n int) {
	if m == nil {
		return
	}
	m.FramesIn.Inc()
	m.BytesIn.Add(float64(n))
}

func (m *Metrics) frameOut(n int) {
	if m == nil {
		return
	}
	m.FramesOut.Inc()
	m.BytesOut.Add(float64(n))
}

func (m *Metrics) decryptFailure() {
	if m != nil {
		m.DecryptFailures.Inc()
	}
}

func (m *Metrics) unmatched() {
	if m != nil {
		m.Unmatched.Inc()
	}
}

func (m *Metrics) timeout() {
	if m != nil {
		m.Timeouts.Inc()
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.ActiveConns.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.ActiveConns.Dec()
	}
}
