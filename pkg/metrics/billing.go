package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingCycleMetrics records the outcome of scheduled billing cycles.
type BillingCycleMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	failures prometheus.Counter
}

const (
	outcomeCreated = "created"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// NewBillingCycleMetrics registers the billing metrics on the provided registerer.
func NewBillingCycleMetrics(reg prometheus.Registerer) *BillingCycleMetrics {
	if reg == nil {
		return &BillingCycleMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_cycle_duration_seconds",
		Help:    "Duration of billing cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_tenant_outcomes_total",
		Help: "Per-tenant outcomes across billing cycles.",
	}, []string{"outcome"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_cycle_failures_total",
		Help: "Billing cycles that ended with a cycle-level error.",
	})
	reg.MustRegister(duration, outcomes, failures)
	return &BillingCycleMetrics{
		duration: duration,
		outcomes: outcomes,
		failures: failures,
	}
}

// ObserveCycle records the duration and per-tenant counts of one cycle.
func (b *BillingCycleMetrics) ObserveCycle(duration time.Duration, created, skipped, failed int, err error) {
	if b == nil || b.duration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		b.failures.Inc()
	}
	b.duration.WithLabelValues(result).Observe(duration.Seconds())
	b.outcomes.WithLabelValues(outcomeCreated).Add(float64(created))
	b.outcomes.WithLabelValues(outcomeSkipped).Add(float64(skipped))
	b.outcomes.WithLabelValues(outcomeFailed).Add(float64(failed))
}
