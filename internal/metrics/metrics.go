// Package metrics exposes Prometheus collectors for action execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "appsim"

// UnknownAction is the action label recorded for calls naming an action
// the app does not define. It keeps the label set bounded.
const UnknownAction = "unknown"

// Metrics groups the collectors one process registers. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	executions     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	loopIterations *prometheus.CounterVec
	observations   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid global state.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Action executions by app, action and outcome.",
		}, []string{"app", "action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time spent executing actions.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"app"}),
		loopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loop_iterations_total",
			Help:      "Loop passes run by action logic.",
		}, []string{"app"}),
		observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Observations queued by Notify blocks.",
		}, []string{"app"}),
	}
	for _, c := range []prometheus.Collector{m.executions, m.duration, m.loopIterations, m.observations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Execution describes one finished action call.
type Execution struct {
	App          string
	Action       string
	Outcome      string
	Duration     time.Duration
	Iterations   int
	Observations int
}

// Record adds one execution to every collector.
func (m *Metrics) Record(e Execution) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(e.App, e.Action, e.Outcome).Inc()
	m.duration.WithLabelValues(e.App).Observe(e.Duration.Seconds())
	if e.Iterations > 0 {
		m.loopIterations.WithLabelValues(e.App).Add(float64(e.Iterations))
	}
	if e.Observations > 0 {
		m.observations.WithLabelValues(e.App).Add(float64(e.Observations))
	}
}
