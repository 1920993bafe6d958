package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attempt outcomes
const (
	outcomeSucceeded = "succeeded"
	outcomeRetried   = "retried"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeDeferred  = "deferred"
)

// Metrics are the dispatcher's Prometheus collectors
type Metrics struct {
	submitted   *prometheus.CounterVec
	attempts    *prometheus.CounterVec
	escalations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	amounts     *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "work_units_submitted_total",
				Help: "Total number of work units accepted by the dispatcher",
			},
			[]string{"type"},
		),
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "work_unit_attempts_total",
				Help: "Work unit attempts partitioned by outcome",
			},
			[]string{"type", "outcome"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "work_unit_escalations_total",
				Help: "Work units that failed permanently and were escalated",
			},
			[]string{"type"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "work_unit_duration_seconds",
				Help:    "Wall time of a work unit across all its attempts",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "work_units_in_flight",
				Help: "Number of work units currently executing",
			},
		),
		amounts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_amount_total",
				Help: "Money moved by the engine partitioned by kind",
			},
			[]string{"kind"},
		),
	}
}
