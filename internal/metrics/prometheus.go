package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the resonate engine
type Metrics struct {
	// Audio loop metrics
	FramesProcessed    prometheus.Counter
	ReadErrors         prometheus.Counter
	WriteErrors        prometheus.Counter
	ContractViolations prometheus.Counter
	IterationDuration  prometheus.Histogram
	Overflows          prometheus.Counter
	Underflows         prometheus.Counter

	// History metrics
	HistoryDepth     prometheus.Gauge
	HistoryEvictions prometheus.Counter

	// Collaborator metrics
	ContextUpdates        prometheus.Counter
	ContextUpdateFailures prometheus.Counter
	SegmentsGated         prometheus.Counter
	Continuations         prometheus.Counter
	ContinuationFailures  prometheus.Counter
	SynthFrames           prometheus.Counter
	SynthFailures         prometheus.Counter
	TextQueueDepth        prometheus.Gauge

	// Mixing level metrics
	Levels *prometheus.GaugeVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Audio loop metrics
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_frames_processed_total",
			Help: "Total number of audio frames processed by the loop",
		}),
		ReadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_read_errors_total",
			Help: "Total number of device read errors",
		}),
		WriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_write_errors_total",
			Help: "Total number of device write errors",
		}),
		ContractViolations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_contract_violations_total",
			Help: "Total number of frame size contract violations",
		}),
		IterationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "resonate_iteration_duration_seconds",
			Help:    "Duration of one audio loop iteration",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		}),
		Overflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_input_overflows_total",
			Help: "Total number of input overflows reported by the device",
		}),
		Underflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_output_underflows_total",
			Help: "Total number of output underflows reported by the device",
		}),

		// History metrics
		HistoryDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "resonate_history_depth",
			Help: "Current number of frames retained in phase history",
		}),
		HistoryEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_history_evictions_total",
			Help: "Total number of frames evicted from phase history",
		}),

		// Collaborator metrics
		ContextUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_context_updates_total",
			Help: "Total number of successful context uploads",
		}),
		ContextUpdateFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_context_update_failures_total",
			Help: "Total number of failed context uploads",
		}),
		SegmentsGated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_segments_gated_total",
			Help: "Total number of segments rejected by the activity gate",
		}),
		Continuations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_continuations_total",
			Help: "Total number of text continuations received",
		}),
		ContinuationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_continuation_failures_total",
			Help: "Total number of failed continuation requests",
		}),
		SynthFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_synth_frames_total",
			Help: "Total number of synthesized frames mixed into output",
		}),
		SynthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "resonate_synth_failures_total",
			Help: "Total number of failed synthesis requests",
		}),
		TextQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "resonate_text_queue_depth",
			Help: "Current number of pending text continuations",
		}),

		// Mixing level metrics
		Levels: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resonate_mixing_level",
			Help: "Current mixing level by name",
		}, []string{"level"}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resonate_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resonate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "resonate_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordIteration records one completed audio loop iteration
func (m *Metrics) RecordIteration(durationSeconds float64) {
	m.FramesProcessed.Inc()
	m.IterationDuration.Observe(durationSeconds)
}

// RecordReadError increments the device read error counter
func (m *Metrics) RecordReadError() {
	m.ReadErrors.Inc()
}

// RecordWriteError increments the device write error counter
func (m *Metrics) RecordWriteError() {
	m.WriteErrors.Inc()
}

// RecordContractViolation increments the contract violation counter
func (m *Metrics) RecordContractViolation() {
	m.ContractViolations.Inc()
}

// SetHistoryDepth sets the current history depth gauge
func (m *Metrics) SetHistoryDepth(depth int) {
	m.HistoryDepth.Set(float64(depth))
}

// RecordHistoryEviction increments the history eviction counter
func (m *Metrics) RecordHistoryEviction() {
	m.HistoryEvictions.Inc()
}

// RecordContextUpdate records the outcome of a context upload
func (m *Metrics) RecordContextUpdate(success bool) {
	if success {
		m.ContextUpdates.Inc()
	} else {
		m.ContextUpdateFailures.Inc()
	}
}

// RecordSegmentGated increments the gated segment counter
func (m *Metrics) RecordSegmentGated() {
	m.SegmentsGated.Inc()
}

// RecordContinuation records the outcome of a continuation request
func (m *Metrics) RecordContinuation(success bool) {
	if success {
		m.Continuations.Inc()
	} else {
		m.ContinuationFailures.Inc()
	}
}

// RecordSynthesis records the outcome of a synthesis request
func (m *Metrics) RecordSynthesis(success bool) {
	if success {
		m.SynthFrames.Inc()
	} else {
		m.SynthFailures.Inc()
	}
}

// SetTextQueueDepth sets the pending continuation gauge
func (m *Metrics) SetTextQueueDepth(depth int) {
	m.TextQueueDepth.Set(float64(depth))
}

// SetLevel sets the gauge for one mixing level
func (m *Metrics) SetLevel(name string, value float64) {
	m.Levels.WithLabelValues(name).Set(value)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
