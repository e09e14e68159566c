// Package metrics defines the Prometheus collectors for discovery, probing
// and API traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fixagent"

// Metrics groups every collector the client exports.
type Metrics struct {
	probesTotal   *prometheus.CounterVec
	probeDuration prometheus.Histogram
	scansTotal    *prometheus.CounterVec
	scanDuration  *prometheus.HistogramVec
	apiRequests   *prometheus.CounterVec
	connectionUp  prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		probesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Reachability probes by result.",
		}, []string{"result"}),
		probeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of reachability probes.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		scansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Discovery sessions by mode and final status.",
		}, []string{"mode", "status"}),
		scanDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of discovery sessions.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"mode"}),
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend API requests by method and status code (0 = transport error).",
		}, []string{"method", "code"}),
		connectionUp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_up",
			Help:      "1 when the configured backend answered the last health probe.",
		}),
	}
}

// ObserveProbe records one probe.
func (m *Metrics) ObserveProbe(reachable bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	m.probesTotal.WithLabelValues(result).Inc()
	m.probeDuration.Observe(d.Seconds())
}

// ObserveScan records a finished discovery session.
func (m *Metrics) ObserveScan(mode, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(mode, status).Inc()
	m.scanDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveAPI records one backend request. code 0 means the request never
// got a response.
func (m *Metrics) ObserveAPI(method string, code int) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// SetConnectionUp records the monitor's view of the backend.
func (m *Metrics) SetConnectionUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connectionUp.Set(1)
		return
	}
	m.connectionUp.Set(0)
}
