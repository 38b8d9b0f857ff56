package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vincentyang1210/pion/metric"
)

// engineMetrics holds the Prometheus metrics for event routing.
type engineMetrics struct {
	routed         prometheus.Counter
	dropped        prometheus.Counter
	activeReactors prometheus.Gauge
}

// newEngineMetrics creates and registers the engine metrics with the
// provided registry. A nil registry disables metrics.
func newEngineMetrics(registry *metric.Registry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &engineMetrics{
		routed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pion",
			Subsystem: "engine",
			Name:      "events_routed_total",
			Help:      "Total events posted for reactor delivery",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pion",
			Subsystem: "engine",
			Name:      "events_dropped_total",
			Help:      "Events dropped because the task queue was full",
		}),
		activeReactors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pion",
			Subsystem: "engine",
			Name:      "active_reactors",
			Help:      "Number of registered reactors at engine start",
		}),
	}

	if err := registry.RegisterCounter("engine", "events_routed_total", m.routed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "events_dropped_total", m.dropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "active_reactors", m.activeReactors); err != nil {
		return nil, err
	}
	return m, nil
}
