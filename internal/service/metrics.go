package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	GateDecisions   *prometheus.CounterVec
	Resolved        *prometheus.CounterVec
	ApplyConflicts  *prometheus.CounterVec
	ProximityLookup prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Authorization gate outcomes by caller role and operation.",
		}, []string{"role", "operation", "outcome"}),
		Resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "change_requests_resolved_total",
			Help: "Change requests moved out of pending by a reviewer.",
		}, []string{"type", "decision"}),
		ApplyConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "change_request_apply_conflicts_total",
			Help: "Approvals whose effect no longer fit the current data.",
		}, []string{"type"}),
		ProximityLookup: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proximity_query_seconds",
			Help:    "Time spent draining a proximity query.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// NopMetrics returns collectors registered nowhere.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
