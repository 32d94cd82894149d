package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink counts events by name and exceptions in Prometheus.
type MetricsSink struct {
	Events     *prometheus.CounterVec
	Exceptions prometheus.Counter
}

func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "telemetry_events_total",
				Help: "Custom telemetry events by name",
			},
			[]string{"name"},
		),
		Exceptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_exceptions_total",
			Help: "Exception reports",
		}),
	}
	reg.MustRegister(s.Events, s.Exceptions)
	return s
}

func (s *MetricsSink) TrackEvent(_ context.Context, name string, _ map[string]string, _ map[string]float64) error {
	s.Events.WithLabelValues(name).Inc()
	return nil
}

func (s *MetricsSink) TrackException(context.Context, error, map[string]string) error {
	s.Exceptions.Inc()
	return nil
}
