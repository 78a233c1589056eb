package observability

import (
	"time"

	"github.com/jonathan/regression-baseline/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regression_baseline"

// Capture outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Metrics holds the collectors for one process. They are kept on a private
// registry so that a run can be exported as a node-exporter textfile.
type Metrics struct {
	registry *prometheus.Registry

	capturesTotal      *prometheus.CounterVec
	absentTotal        *prometheus.CounterVec
	captureSeconds     prometheus.Histogram
	findings           *prometheus.GaugeVec
	comparisonPassed   prometheus.Gauge
	lastComparisonTime prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		capturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Total number of snapshot captures, partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		absentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dimension_absent_total",
				Help:      "Dimensions recorded as absent, partitioned by dimension.",
			},
			[]string{"dimension"},
		),
		captureSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_seconds",
				Help:      "Snapshot capture latency in seconds.",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		findings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "findings",
				Help:      "Findings of the last comparison, partitioned by status.",
			},
			[]string{"status"},
		),
		comparisonPassed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "comparison_passed",
				Help:      "1 if the last comparison had no failing findings.",
			},
		),
		lastComparisonTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_comparison_timestamp_seconds",
				Help:      "Unix time of the last comparison.",
			},
		),
	}
	// A fresh registry cannot already hold these collectors.
	_ = m.Register(m.registry)
	return m
}

// Register attaches the collectors to reg as well, e.g. the default registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.capturesTotal,
		m.absentTotal,
		m.captureSeconds,
		m.findings,
		m.comparisonPassed,
		m.lastComparisonTime,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCapture records one capture attempt. A nil snapshot counts as an error.
func (m *Metrics) ObserveCapture(duration time.Duration, s *types.Snapshot) {
	if duration < 0 {
		duration = 0
	}
	m.captureSeconds.Observe(duration.Seconds())

	if s == nil {
		m.capturesTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	absent := s.AbsentDimensions()
	for _, dim := range absent {
		m.absentTotal.WithLabelValues(dim).Inc()
	}
	if len(absent) > 0 {
		m.capturesTotal.WithLabelValues(OutcomePartial).Inc()
		return
	}
	m.capturesTotal.WithLabelValues(OutcomeSuccess).Inc()
}

// ObserveReport records the outcome of a comparison.
func (m *Metrics) ObserveReport(r *types.Report) {
	m.findings.WithLabelValues(string(types.StatusPass)).Set(float64(r.Summary.Passed))
	m.findings.WithLabelValues(string(types.StatusWarning)).Set(float64(r.Summary.Warnings))
	m.findings.WithLabelValues(string(types.StatusFail)).Set(float64(r.Summary.Failed))
	if r.Passed {
		m.comparisonPassed.Set(1)
	} else {
		m.comparisonPassed.Set(0)
	}
	m.lastComparisonTime.Set(float64(r.GeneratedAt.Unix()))
}

// WriteTextfile writes every collected metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
