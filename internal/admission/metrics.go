// Package admission provides metrics recording.
package admission

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records admission activity. Implementations must be safe for
// concurrent use and must never block the decision path.
type Metrics interface {
	IncCheck(result string, reason string, tier string)
	ObserveCheckLatency(d time.Duration)
	AddOverageUnits(tier string, units int64)
	SetLimiterStates(n int)
	SetPrincipals(n int)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

func (NoopMetrics) IncCheck(string, string, string)   {}
func (NoopMetrics) ObserveCheckLatency(time.Duration) {}
func (NoopMetrics) AddOverageUnits(string, int64)     {}
func (NoopMetrics) SetLimiterStates(int)              {}
func (NoopMetrics) SetPrincipals(int)                 {}

// PrometheusMetrics exports admission metrics through a dedicated registry.
type PrometheusMetrics struct {
	registry      *prometheus.Registry
	checks        *prometheus.CounterVec
	overageUnits  *prometheus.CounterVec
	checkDuration prometheus.Histogram
	limiterStates prometheus.Gauge
	principals    prometheus.Gauge
}

// NewPrometheusMetrics constructs collectors on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &PrometheusMetrics{
		registry: registry,
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_checks_total",
				Help: "Total number of admission checks by result, deny reason, and tier",
			},
			[]string{"result", "reason", "tier"},
		),
		overageUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_overage_units_total",
				Help: "Compute units admitted beyond the monthly ceiling, by tier",
			},
			[]string{"tier"},
		),
		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "admission_check_duration_seconds",
				Help:    "Latency of admission checks",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
		limiterStates: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "admission_limiter_states",
				Help: "Live per-principal limiter states",
			},
		),
		principals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "admission_principals",
				Help: "Issued principals",
			},
		),
	}
}

// Registry exposes the underlying registry for the metrics endpoint.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncCheck increments the check counter.
func (m *PrometheusMetrics) IncCheck(result string, reason string, tier string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(result, reason, tier).Inc()
}

// ObserveCheckLatency records a check duration.
func (m *PrometheusMetrics) ObserveCheckLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.Observe(d.Seconds())
}

// AddOverageUnits accumulates admitted overage units.
func (m *PrometheusMetrics) AddOverageUnits(tier string, units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.overageUnits.WithLabelValues(tier).Add(float64(units))
}

// SetLimiterStates records the live limiter state count.
func (m *PrometheusMetrics) SetLimiterStates(n int) {
	if m == nil {
		return
	}
	m.limiterStates.Set(float64(n))
}

// SetPrincipals records the issued principal count.
func (m *PrometheusMetrics) SetPrincipals(n int) {
	if m == nil {
		return
	}
	m.principals.Set(float64(n))
}
