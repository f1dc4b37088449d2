// Package metrics exposes the progress of an optimization run as Prometheus
// metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thalesfsp/bayesopt"
)

const namespace = "bayesopt"

// Recorder collects run metrics on its own registry, so several runs in one
// process never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry
	problem  string

	evaluations  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	bestValue    *prometheus.GaugeVec
	lastValue    *prometheus.GaugeVec
	iteration    *prometheus.GaugeVec
}

// NewRecorder creates a recorder whose series are labeled with problem.
func NewRecorder(problem string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		problem:  problem,

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of objective evaluations",
			},
			[]string{"problem", "phase"},
		),

		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of one ask/evaluate/tell step in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"problem", "phase"},
		),

		bestValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "best_value",
				Help:      "Lowest objective value observed so far",
			},
			[]string{"problem"},
		),

		lastValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_value",
				Help:      "Objective value of the latest evaluation",
			},
			[]string{"problem"},
		),

		iteration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "iteration",
				Help:      "Latest completed iteration",
			},
			[]string{"problem"},
		),
	}

	r.registry.MustRegister(r.evaluations, r.stepDuration, r.bestValue, r.lastValue, r.iteration)

	return r
}

// Observe records one progress update and the time the step took.
func (r *Recorder) Observe(update bayesopt.ProgressUpdate, elapsed time.Duration) {
	phase := string(update.Phase)

	r.evaluations.WithLabelValues(r.problem, phase).Inc()
	r.stepDuration.WithLabelValues(r.problem, phase).Observe(elapsed.Seconds())
	r.bestValue.WithLabelValues(r.problem).Set(update.CurrentBestValue)
	r.lastValue.WithLabelValues(r.problem).Set(update.CurrentValue)
	r.iteration.WithLabelValues(r.problem).Set(float64(update.CurrentIteration))
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
