// Package metrics exposes Prometheus instruments for briefing runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects run and component outcomes. A nil *Recorder is a no-op.
type Recorder struct {
	runs     *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biasgen_runs_total",
				Help: "Briefing runs by trigger and narrative result",
			},
			[]string{"trigger", "result"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "biasgen_component_outcomes_total",
				Help: "Per-component outcomes within a run",
			},
			[]string{"component", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "biasgen_run_duration_seconds",
				Help:    "Wall time of a briefing run",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"trigger"},
		),
	}
}

// RecordRun counts one finished run.
func (r *Recorder) RecordRun(trigger, result string, took time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(trigger, result).Inc()
	r.duration.WithLabelValues(trigger).Observe(took.Seconds())
}

// RecordOutcome counts one component outcome, e.g. ("price:ES", "unavailable").
func (r *Recorder) RecordOutcome(component, outcome string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(component, outcome).Inc()
}
