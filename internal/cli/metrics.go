package cli

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/appsim/internal/app"
	"github.com/roach88/appsim/internal/metrics"
)

// metricsSink collects execution metrics for one command when
// --metrics-file is set. The zero value records nothing.
type metricsSink struct {
	path string
	reg  *prometheus.Registry
	m    *metrics.Metrics
}

func (o *RootOptions) newMetricsSink() (*metricsSink, error) {
	if o.MetricsPath == "" {
		return &metricsSink{}, nil
	}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}
	return &metricsSink{path: o.MetricsPath, reg: reg, m: m}, nil
}

func (s *metricsSink) option() app.Option {
	return app.WithMetrics(s.m)
}

// flush writes the collected metrics in the Prometheus text format.
func (s *metricsSink) flush() error {
	if s.path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(s.path, s.reg)
}
