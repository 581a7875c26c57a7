// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces consumed by the listener host.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/firstsee/servicehost/pkg/host"
	"github.com/firstsee/servicehost/pkg/metrics"
)

// hostMetrics is the Prometheus implementation of host.MetricsRecorder.
type hostMetrics struct {
	requestsAccepted  prometheus.Counter
	requestsCompleted prometheus.Counter
	acceptErrors      prometheus.Counter
	dispatchErrors    prometheus.Counter
	diagnosticsSent   prometheus.Counter
	diagnosticsFailed prometheus.Counter
	inFlight          prometheus.Gauge
	dispatchDuration  prometheus.Histogram
}

// NewHostMetrics creates a new Prometheus-backed MetricsRecorder.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHostMetrics() host.MetricsRecorder {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &hostMetrics{
		requestsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_requests_accepted_total",
				Help: "Total number of connections accepted by the listener",
			},
		),
		requestsCompleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_requests_completed_total",
				Help: "Total number of dispatch cycles completed",
			},
		),
		acceptErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_accept_errors_total",
				Help: "Total number of accept failures with no request context",
			},
		),
		dispatchErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_dispatch_errors_total",
				Help: "Total number of observer or dispatcher failures",
			},
		),
		diagnosticsSent: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_diagnostic_responses_total",
				Help: "Total number of diagnostic error responses written to clients",
			},
		),
		diagnosticsFailed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "servicehost_diagnostic_write_failures_total",
				Help: "Total number of failures while writing diagnostic responses",
			},
		),
		inFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "servicehost_requests_in_flight",
				Help: "Current number of requests being dispatched",
			},
		),
		dispatchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "servicehost_dispatch_duration_milliseconds",
				Help: "Duration of one accept-to-close dispatch cycle in milliseconds",
				Buckets: []float64{
					0.5,   // 500us - trivial handlers
					1,     // 1ms
					5,     // 5ms
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s - long-lived connections
					30000, // 30s
				},
			},
		),
	}
}

func (m *hostMetrics) RecordRequestAccepted() {
	m.requestsAccepted.Inc()
}

func (m *hostMetrics) RecordRequestCompleted() {
	m.requestsCompleted.Inc()
}

func (m *hostMetrics) RecordAcceptError() {
	m.acceptErrors.Inc()
}

func (m *hostMetrics) RecordDispatchError() {
	m.dispatchErrors.Inc()
}

func (m *hostMetrics) RecordDiagnosticWritten() {
	m.diagnosticsSent.Inc()
}

func (m *hostMetrics) RecordDiagnosticWriteFailed() {
	m.diagnosticsFailed.Inc()
}

func (m *hostMetrics) SetInFlight(count int32) {
	m.inFlight.Set(float64(count))
}

func (m *hostMetrics) ObserveDispatchDuration(d time.Duration) {
	m.dispatchDuration.Observe(float64(d.Milliseconds()))
}
