// Package metrics holds the Prometheus collectors shared by the API and the worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bruhbug"

type Metrics struct {
	RoastsGenerated     prometheus.Counter
	GenerationFailures  *prometheus.CounterVec // reason
	RecordWrites        *prometheus.CounterVec // status: ok|error
	Dispatches          *prometheus.CounterVec // status: ok|duplicate|error
	RealtimeConnections prometheus.Gauge
}

// New creates the collectors and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoastsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "roasts_generated_total",
			Help:      "Roasts produced by the text-generation endpoint.",
		}),
		GenerationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_failures_total",
			Help:      "Jobs abandoned before a record was written.",
		}, []string{"reason"}),
		RecordWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_writes_total",
			Help:      "Bug record writes by outcome.",
		}, []string{"status"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Worker triggers received by the API.",
		}, []string{"status"}),
		RealtimeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime websocket connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.RoastsGenerated,
			m.GenerationFailures,
			m.RecordWrites,
			m.Dispatches,
			m.RealtimeConnections,
		)
	}
	return m
}

// Nop returns unregistered collectors, for tests and optional wiring.
func Nop() *Metrics { return New(nil) }
