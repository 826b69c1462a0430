package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal       *prometheus.CounterVec
	confidence       prometheus.Gauge
	directionChanges *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	executionsTotal  *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors on reg instead of the default registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ticksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpilot_monitor_ticks_total",
				Help: "Market direction monitor evaluations",
			},
			[]string{"direction", "degraded"},
		),
		confidence: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalpilot_monitor_confidence",
				Help: "Confidence of the latest market direction snapshot",
			},
		),
		directionChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpilot_direction_changes_total",
				Help: "Detected market direction change events",
			},
			[]string{"kind", "severity"},
		),
		decisionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpilot_decisions_total",
				Help: "Signal decisions by outcome",
			},
			[]string{"approved", "source", "reject_code"},
		),
		executionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpilot_user_executions_total",
				Help: "Per-user execution outcomes",
			},
			[]string{"success", "reason"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalpilot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalpilot_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordTick(degraded bool, direction string, confidence float64) {
	r.ticksTotal.WithLabelValues(direction, strconv.FormatBool(degraded)).Inc()
	r.confidence.Set(confidence)
}

func (r *Recorder) RecordDirectionChange(kind, severity string) {
	r.directionChanges.WithLabelValues(kind, severity).Inc()
}

func (r *Recorder) RecordDecision(approved bool, source, rejectCode string) {
	r.decisionsTotal.WithLabelValues(strconv.FormatBool(approved), source, rejectCode).Inc()
}

func (r *Recorder) RecordExecution(success bool, reason string) {
	r.executionsTotal.WithLabelValues(strconv.FormatBool(success), reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordTick(bool, string, float64) {}
func (Noop) RecordDirectionChange(string, string) {}
func (Noop) RecordDecision(bool, string, string) {}
func (Noop) RecordExecution(bool, string) {}
func (Noop) RecordError(string) {}
func (Noop) RecordLatency(string, float64) {}
